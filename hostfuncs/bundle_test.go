package hostfuncs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(b Bundle) []string {
	var out []string
	for _, fn := range b.Functions() {
		out = append(out, fn.Name)
	}
	return out
}

func TestCoreBundle(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"eea_trace",
		"eea_send_message",
		"eea_get_time",
		"eea_set_message_buffers",
		"eea_sleep",
		"eea_storage_save",
		"eea_storage_read",
		"eea_get_device_id",
	}, names(CoreBundle()))
}

func TestCoreBundle_Arity(t *testing.T) {
	want := map[string]int{
		FuncTrace:             3,
		FuncSendMessage:       5,
		FuncGetTime:           1,
		FuncSetMessageBuffers: 4,
		FuncSleep:             1,
		FuncStorageSave:       2,
		FuncStorageRead:       3,
		FuncGetDeviceID:       3,
	}
	for _, fn := range CoreBundle().Functions() {
		assert.Equal(t, want[fn.Name], fn.Params, fn.Name)
	}
}

func TestAllBundles(t *testing.T) {
	reg, err := NewRegistry(WithBundle(AllBundles()))
	require.NoError(t, err)

	assert.Len(t, reg.Names(), 9)
	assert.True(t, reg.Has(FuncTerminalPrint))
}
