package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCVKey(t *testing.T) {
	assert.Equal(t, "cv/ada-example-org.pdf", CVKey("ada@example.org"))
	assert.Equal(t, "cv/first-last-sub-example-org.pdf", CVKey("first.last@sub.example.org"))
}
