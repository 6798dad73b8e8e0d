// Package validation содержит функции валидации входных данных.
package validation

import "strings"

// MinPasswordLength — минимальная длина пароля пользователя.
const MinPasswordLength = 8

// IsValidEmail проверяет базовую корректность адреса электронной почты.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\n") {
		return false
	}

	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return true
}

// IsValidPassword проверяет, что пароль достаточно длинный.
func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

// IsValidRating проверяет, что оценка отзыва лежит в диапазоне от 1 до 5.
func IsValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}
