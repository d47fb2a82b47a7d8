package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woslots/WO/internal/protocol"
)

func TestEncode_FirstPacketCarriesPreamble(t *testing.T) {
	p := protocol.New(protocol.CmdGameRefresh)
	p["status"] = "idle"

	first, err := Encode(p, true)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(first, []byte(Preamble)))

	second, err := Encode(p, false)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(second, []byte(Preamble)))

	// Same frame after the preamble.
	assert.Equal(t, first[len(Preamble):], second)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	p := protocol.New(protocol.CmdStartGame)
	p["randomSeed"] = 423
	p["currentPlayer"] = "abc"
	p["co"] = []string{"abc", "def"}

	frame, err := Encode(p, false)
	require.NoError(t, err)

	// Length prefix is 6 zero-padded digits followed by exactly that
	// many bytes of JSON.
	require.Regexp(t, `^\d{6}\{`, string(frame))

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdStartGame, got.Command())
	assert.Equal(t, 423, got.Int("randomSeed"))
	assert.Equal(t, "abc", got.String("currentPlayer"))
}

func TestDecode_BareJSON(t *testing.T) {
	got, err := Decode([]byte(`{"command":"logIn","dname":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdLogIn, got.Command())
	assert.Equal(t, "A", got.String("dname"))
}

func TestDecode_HTTPWrapped(t *testing.T) {
	raw := "POST /game HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"\r\n" +
		`data={"command":"chat","text":"hi"}`
	got, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdChat, got.Command())
	assert.Equal(t, "hi", got.String("text"))
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]struct {
		frame []byte
		want  error
	}{
		"empty":             {[]byte("  \r\n"), ErrEmptyFrame},
		"truncated body":    {[]byte(`000099{"command":"x"}`), ErrTruncated},
		"post without body": {[]byte("POST /game HTTP/1.1\r\nHost: x"), ErrNoPayload},
		"no command":        {[]byte(`{"text":"hi"}`), ErrMissingCommand},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc.frame)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Decode([]byte(`{"command":`))
	assert.Error(t, err)
}

func TestIsPolicyProbe(t *testing.T) {
	assert.True(t, IsPolicyProbe([]byte("<policy-file-request/>\x00")))
	assert.True(t, IsPolicyProbe([]byte("  <anything>")))
	assert.False(t, IsPolicyProbe([]byte(`{"command":"logIn"}`)))
	assert.False(t, IsPolicyProbe(nil))
}

func TestPolicyResponse_NulTerminated(t *testing.T) {
	require.True(t, strings.HasSuffix(string(PolicyResponse), "\x00"))
	assert.Contains(t, string(PolicyResponse), "cross-domain-policy")
}
