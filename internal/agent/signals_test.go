package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<!doctype html>
<html>
<head><title>  Acme Bank Login  </title><style>body{color:red}</style></head>
<body>
<script>var tracking = true;</script>
<h1>Acme Bank</h1>
<p>Please verify your account. This is URGENT.</p>
<form action="/login">
  <input type="text" name="user">
  <input type="password" name="pass">
</form>
<form action="/pay">
  <input type="text" name="cardNumber">
</form>
<form action="/search">
  <input type="text" name="q">
</form>
</body>
</html>`

func TestExtractSignalsBasics(t *testing.T) {
	sig, err := ExtractSignals(loginPage, "https://bank.example/login?next=home", DefaultLexicon())
	require.NoError(t, err)

	assert.Equal(t, "https://bank.example/login?next=home", sig.URL)
	assert.Equal(t, "bank.example", sig.Hostname)
	assert.Equal(t, "Acme Bank Login", sig.Title)

	require.Len(t, sig.Forms, 3)
	assert.True(t, sig.Forms[0].HasPassword)
	assert.False(t, sig.Forms[0].HasCard)
	assert.False(t, sig.Forms[1].HasPassword)
	assert.True(t, sig.Forms[1].HasCard)
	assert.False(t, sig.Forms[2].HasPassword)
	assert.False(t, sig.Forms[2].HasCard)
}

func TestExtractSignalsTextExcludesScriptsAndStyles(t *testing.T) {
	sig, err := ExtractSignals(loginPage, "https://bank.example/", DefaultLexicon())
	require.NoError(t, err)

	assert.Contains(t, sig.TextSample, "Acme Bank")
	assert.NotContains(t, sig.TextSample, "tracking")
	assert.NotContains(t, sig.TextSample, "color:red")
}

func TestExtractSignalsCues(t *testing.T) {
	sig, err := ExtractSignals(loginPage, "https://bank.example/", DefaultLexicon())
	require.NoError(t, err)

	assert.Contains(t, sig.CuesFound, "verify your account")
	assert.Contains(t, sig.CuesFound, "urgent")
	assert.Contains(t, sig.CuesFound, "bank")
	assert.NotContains(t, sig.CuesFound, "otp")
}

func TestExtractSignalsCapsForms(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, `<form><input type="password" name="p%d"></form>`, i)
	}
	b.WriteString("</body></html>")

	sig, err := ExtractSignals(b.String(), "https://many.example/", nil)
	require.NoError(t, err)
	assert.Len(t, sig.Forms, 10)
}

func TestExtractSignalsCapsTextAndCues(t *testing.T) {
	cues := make([]string, 0, 20)
	var body strings.Builder
	for i := 0; i < 20; i++ {
		cue := fmt.Sprintf("cueword%d", i)
		cues = append(cues, cue)
		body.WriteString(cue + " ")
	}
	body.WriteString(strings.Repeat("padding ", 300))

	html := "<html><body><p>" + body.String() + "</p></body></html>"
	sig, err := ExtractSignals(html, "https://long.example/", cues)
	require.NoError(t, err)

	assert.Len(t, sig.CuesFound, 10)
	assert.LessOrEqual(t, len([]rune(sig.TextSample)), 800)
}

func TestExtractSignalsArabicCues(t *testing.T) {
	html := `<html><body><p>الرجاء إدخال كلمة المرور لتأكيد حسابك</p></body></html>`
	sig, err := ExtractSignals(html, "https://ar.example/", DefaultLexicon())
	require.NoError(t, err)

	assert.Contains(t, sig.CuesFound, "كلمة المرور")
	assert.Contains(t, sig.CuesFound, "حسابك")
}
