package coordination

import "testing"

func TestKeyNaming(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{bufferTimerKey("sess-1"), "buffer-timer:sess-1"},
		{sessionLockKey("sess-1"), "lock:sess-1"},
		{learnLockKey("ls-1"), "learn-lock:ls-1"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}
