package workflow

import "testing"

func TestServerOverallProgress(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 8, 0},
		{3, 8, 38}, // the 4th stage's partial progress is excluded on purpose
		{4, 8, 50},
		{7, 8, 88},
		{8, 8, 100},
		{0, 0, 0},
	}

	for _, tc := range cases {
		if got := ServerOverallProgress(tc.completed, tc.total); got != tc.want {
			t.Errorf("ServerOverallProgress(%d, %d) = %d, want %d",
				tc.completed, tc.total, got, tc.want)
		}
	}
}
