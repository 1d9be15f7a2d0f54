package voice

import "testing"

func TestSpokenText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops emoji and bold markers",
			in:   "Bahut badhiya 😊 **Ravi**, aage badhte hain.",
			want: "Bahut badhiya Ravi, aage badhte hain.",
		},
		{
			name: "keeps link label and removes url",
			in:   "Dekhiye [Skill India](https://skillindia.gov.in) portal.",
			want: "Dekhiye Skill India portal.",
		},
		{
			name: "flattens bullet lists",
			in:   "Options:\n- Electrician\n- Plumber\n1. Driver",
			want: "Options: Electrician Plumber Driver",
		},
		{
			name: "keeps devanagari and danda",
			in:   "आपका नाम क्या है। ✅",
			want: "आपका नाम क्या है।",
		},
		{
			name: "keeps rupee amounts",
			in:   "Salary ₹15000/month tak.",
			want: "Salary ₹15000/month tak.",
		},
		{
			name: "empty input",
			in:   "   ",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := spokenText(tc.in)
			if got != tc.want {
				t.Fatalf("spokenText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
