package options_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/coldeck/mrcore/internal/options"
)

type secretTest struct {
	str options.SecretString
}

func assertNotIn(t *testing.T, str string, substr string) {
	if strings.Contains(str, substr) {
		t.Fatalf("'%s' should not contain '%s'", str, substr)
	}
}

func equals(t *testing.T, want, got interface{}) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestSecretString(t *testing.T) {
	keyStr := "secret-key"
	secret := options.NewSecretString(keyStr)

	equals(t, "**redacted**", secret.String())
	equals(t, `"**redacted**"`, secret.GoString())
	equals(t, "**redacted**", fmt.Sprint(secret))
	equals(t, "**redacted**", fmt.Sprintf("%v", secret))
	equals(t, `"**redacted**"`, fmt.Sprintf("%#v", secret))
	equals(t, keyStr, secret.Unwrap())
}

func TestSecretStringStruct(t *testing.T) {
	keyStr := "secret-key"
	secretStruct := &secretTest{
		str: options.NewSecretString(keyStr),
	}

	assertNotIn(t, fmt.Sprint(secretStruct), keyStr)
	assertNotIn(t, fmt.Sprintf("%v", secretStruct), keyStr)
	assertNotIn(t, fmt.Sprintf("%#v", secretStruct), keyStr)
}

func TestSecretStringEmpty(t *testing.T) {
	keyStr := ""
	secret := options.NewSecretString(keyStr)

	equals(t, "", secret.String())
	equals(t, `""`, secret.GoString())
	equals(t, "", fmt.Sprint(secret))
	equals(t, "", fmt.Sprintf("%v", secret))
	equals(t, `""`, fmt.Sprintf("%#v", secret))
	equals(t, keyStr, secret.Unwrap())
}

func TestSecretStringDefault(t *testing.T) {
	secretStruct := &secretTest{}

	equals(t, "", secretStruct.str.String())
	equals(t, `""`, secretStruct.str.GoString())
	equals(t, "", secretStruct.str.Unwrap())
}
