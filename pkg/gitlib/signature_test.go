package gitlib_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codegrove/structgrep/pkg/gitlib"
)

func TestSignatureString(t *testing.T) {
	sig := gitlib.Signature{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		When:  time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, "Ada Lovelace <ada@example.com> 2026-03-05", sig.String())
}
