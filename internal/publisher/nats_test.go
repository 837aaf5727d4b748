package publisher

import "testing"

func TestSubject(t *testing.T) {
	cases := []struct {
		prefix, session, want string
	}{
		{"modeenv", "abc", "modeenv.abc.step"},
		{"modeenv", "eval.majority", "modeenv.eval_majority.step"},
		{"mode env", "", "mode_env._.step"},
		{"x", "a>b*c", "x.a_b_c.step"},
	}
	for _, c := range cases {
		if got := Subject(c.prefix, c.session); got != c.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", c.prefix, c.session, got, c.want)
		}
	}
}
