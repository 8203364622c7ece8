package signal

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "stopped re-entry alert",
			in:   "ALERT: stopped $SPX (add-on) Re-entry long IN: 3609 - 10 pt stop",
			want: "STOPPED $SPX (ADD-ON) RE-ENTRY LONGIN 3609 - 10 PT STOP",
		},
		{
			name: "multiline alert",
			in:   "ALERT: flat stop $SPX\nLONG RE-ENTRY IN: 3609",
			want: "FLAT STOP $SPX | LONG RE-ENTRYIN 3609",
		},
		{
			name: "collapses whitespace runs",
			in:   "LONG   $SPX\t IN  3609",
			want: "LONG $SPX IN 3609",
		},
		{
			name: "reattaches pipe before IN",
			in:   "LIMIT BUY $SPX|IN 4000",
			want: "LIMIT BUY $SPX| IN 4000",
		},
		{
			name: "alert marker only stripped before uppercasing",
			in:   "alert: short $RUT",
			want: "ALERT: SHORT $RUT",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "ALERT: flat stop $SPX\nLONG RE-ENTRY IN: 3609"
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Fatalf("second pass changed text: %q -> %q", once, twice)
	}
}
