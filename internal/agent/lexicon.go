package agent

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultLexicon lists the phishing cues matched against page text. The set
// is intentionally small and multilingual (English and Arabic).
func DefaultLexicon() []string {
	return []string{
		"verify your account",
		"urgent",
		"login",
		"password",
		"bank",
		"payment",
		"otp",
		"one-time password",
		"تأكيد",
		"تحقق",
		"كلمة المرور",
		"الدفع",
		"حسابك",
	}
}

// lexiconFile is the YAML shape of an override file.
type lexiconFile struct {
	Cues []string `yaml:"cues"`
}

// LoadLexicon reads a cue list from a YAML file. An empty path returns the
// default lexicon.
func LoadLexicon(path string) ([]string, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}

	var file lexiconFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(file.Cues) == 0 {
		return nil, fmt.Errorf("lexicon %q contains no cues", path)
	}
	return file.Cues, nil
}
