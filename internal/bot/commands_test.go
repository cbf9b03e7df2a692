package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		ok   bool
		name string
		args []string
	}{
		{"/pushups 80", true, "pushups", []string{"80"}},
		{"/отжимания 20", true, "отжимания", []string{"20"}},
		{"/ПРЕСС   -5  extra", true, "пресс", []string{"-5", "extra"}},
		{"/stats@Fitness_Debt_Bot", true, "stats", []string{}},
		{"/stats@another_bot", false, "", nil},
		{"  /help", true, "help", []string{}},
		{"hello /pushups 5", false, "", nil},
		{"/", false, "", nil},
		{"", false, "", nil},
	}

	for _, tt := range tests {
		cmd, ok := parseCommand(tt.text, "fitness_debt_bot")
		require.Equal(t, tt.ok, ok, tt.text)
		if !ok {
			continue
		}
		assert.Equal(t, tt.name, cmd.name, tt.text)
		assert.Equal(t, tt.args, cmd.args, tt.text)
	}
}

func TestParseAmount(t *testing.T) {
	n, err := parseAmount([]string{"+20"})
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = parseAmount([]string{"-7"})
	require.NoError(t, err)
	assert.Equal(t, -7, n)

	_, err = parseAmount(nil)
	assert.ErrorIs(t, err, errNoAmount)

	_, err = parseAmount([]string{"12abc"})
	assert.Error(t, err)
}
