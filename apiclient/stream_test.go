package apiclient_test

import (
	"context"
	"testing"
	"time"

	apiclient "github.com/Alia5/ps2bridge/apiclient"
	"github.com/Alia5/ps2bridge/internal/server/stream"
	th "github.com/Alia5/ps2bridge/internal/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStream_NotSupportedWithMockTransport(t *testing.T) {
	c := testClient(map[string]string{}, nil)
	_, err := c.OpenStream(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not supported with mock transport")
}

func TestClientAgainstBridge(t *testing.T) {
	type testCase struct {
		name     string
		password string
	}

	cases := []testCase{
		{name: "plain"},
		{name: "authenticated", password: "correct horse"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			br := th.StartBridge(t, stream.ServerConfig{Password: tc.password, StreamBuffer: 64})
			kb, hub := br.Keyboard, br.Hub
			c := apiclient.NewWithPassword(br.Addr, tc.password)

			id, err := c.ReadID()
			require.NoError(t, err)
			assert.Equal(t, "ab83", id.ID)

			leds, err := c.SetLEDs(0x04)
			require.NoError(t, err)
			assert.Equal(t, uint8(0x04), leds.Leds)
			assert.True(t, kb.GetLEDState().CapsLock)

			st, err := c.Status()
			require.NoError(t, err)
			assert.Equal(t, "none", st.Fault)

			s, err := c.OpenStream(context.Background())
			require.NoError(t, err)
			defer s.Close()
			require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 5*time.Second, time.Millisecond)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			chars, errs := s.StartReading(ctx, 16)
			kb.Type("go")

			var got []byte
			for len(got) < 2 {
				select {
				case b, ok := <-chars:
					if !ok {
						t.Fatalf("stream ended: %v", <-errs)
					}
					got = append(got, b)
				case <-ctx.Done():
					t.Fatal("timed out waiting for stream")
				}
			}
			assert.Equal(t, "go", string(got))

			cancel()
			assert.ErrorIs(t, <-errs, context.Canceled)
		})
	}
}

func TestWrongPasswordAgainstBridge(t *testing.T) {
	br := th.StartBridge(t, stream.ServerConfig{Password: "secret"})
	_, err := apiclient.NewWithPassword(br.Addr, "guess").Ping()
	assert.ErrorContains(t, err, "401 Unauthorized: invalid password")
}
