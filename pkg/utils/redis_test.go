package utils

import (
	"context"
	"testing"
	"time"
)

func TestFixedWindowScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the script should be initialized.
	if fixedWindowScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestAllowFixedWindow_ValidatesArguments(t *testing.T) {
	ctx := context.Background()

	if _, err := AllowFixedWindow(ctx, nil, "k", 5, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
