package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if out.String() != "Name?\n> " {
		t.Fatalf("unexpected prompt %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleTextEmptyEOF(t *testing.T) {
	var out bytes.Buffer
	_, err := GetSimpleText(rdr(""), "Name?", &out)
	if err == nil {
		t.Fatal("expected EOF error")
	}
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()

	t.Run("ok", func(t *testing.T) {
		readPassword = func(int) ([]byte, error) { return []byte("secret123"), nil }
		var out bytes.Buffer
		pw, err := GetPassword(&out, "Password")
		require.NoError(t, err)
		assert.Equal(t, "secret123", string(pw))
		assert.Equal(t, "Password: \n", out.String())
	})

	t.Run("error", func(t *testing.T) {
		readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
		var out bytes.Buffer
		_, err := GetPassword(&out, "Password")
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestGetTextWithDefault(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		def        string
		want       string
		wantPrompt string
	}{
		{name: "empty answer keeps default", input: "\n", def: "Taro", want: "Taro", wantPrompt: "Name [Taro]\n> "},
		{name: "answer wins", input: "Jiro\n", def: "Taro", want: "Jiro", wantPrompt: "Name [Taro]\n> "},
		{name: "no default", input: "\n", def: "", want: "", wantPrompt: "Name\n> "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetTextWithDefault(rdr(tc.input), "Name", tc.def, &out)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantPrompt, out.String())
		})
	}
}
