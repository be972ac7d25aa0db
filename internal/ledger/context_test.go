package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordedBy(t *testing.T) {
	_, ok := RecordedBy(context.Background())
	assert.False(t, ok)

	_, ok = RecordedBy(WithRecordedBy(context.Background(), ""))
	assert.False(t, ok)

	chat, ok := RecordedBy(WithRecordedBy(context.Background(), "1234"))
	assert.True(t, ok)
	assert.Equal(t, "1234", chat)
}
