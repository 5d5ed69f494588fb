package auth

import (
	"context"
	"fmt"
)

type noopMailer struct{}

func (noopMailer) SendVerificationEmail(context.Context, PrincipalSummary, string) error {
	return nil
}

func (noopMailer) SendPasswordResetEmail(context.Context, PrincipalSummary, string) error {
	return nil
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

// ConsoleMailer prints delivery notifications to stdout. Development only.
type ConsoleMailer struct{}

func (ConsoleMailer) SendVerificationEmail(_ context.Context, principal PrincipalSummary, token string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", principal.Email)
	fmt.Printf("link: /verify-email/%s\n", token)
	return nil
}

func (ConsoleMailer) SendPasswordResetEmail(_ context.Context, principal PrincipalSummary, token string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", principal.Email)
	fmt.Printf("link: /password-reset/%s\n", token)
	return nil
}

var (
	_ Mailer = noopMailer{}
	_ Mailer = ConsoleMailer{}
)
