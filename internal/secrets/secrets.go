package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// "Service" groups the engine's secrets in the OS keychain.
	KeyringService = "leadengine"

	AccountSMTP          = "smtp"
	AccountIMAP          = "imap"
	AccountBotToken      = "telegram-bot"
	AccountWebhookSecret = "webhook"
)

// Get reads one secret, keyring first with an env fallback for headless
// deployments (LEADENGINE_SECRET_<ACCOUNT>).
func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	env := "LEADENGINE_SECRET_" + strings.ToUpper(strings.ReplaceAll(account, "-", "_"))
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %q not found (set it in keychain or via %s)", account, env)
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
