package gcix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackFrameWindowOrdersLowHigh(t *testing.T) {
	a := StackFrame{anchor: 100}
	b := StackFrame{anchor: 200}

	low, high := a.window(b)
	require.Equal(t, uintptr(100), low)
	require.Equal(t, uintptr(200), high)

	low, high = b.window(a)
	require.Equal(t, uintptr(100), low)
	require.Equal(t, uintptr(200), high)
}
