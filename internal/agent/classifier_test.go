package agent

import "testing"

func TestNeedsClarification(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{
			name:   "could you with question mark",
			answer: "I'd love to help! Could you share which area you prefer?",
			want:   true,
		},
		{
			name:   "please tell me",
			answer: "Please tell me your budget range?",
			want:   true,
		},
		{
			name:   "what kind of",
			answer: "What kind of property are you looking for?",
			want:   true,
		},
		{
			name:   "more details",
			answer: "I can narrow this down with more details. What is your budget?",
			want:   true,
		},
		{
			name:   "help me",
			answer: "A few specifics would help me a lot. Which area works for you?",
			want:   true,
		},
		{
			name:   "tell me more",
			answer: "Tell me more about what you need?",
			want:   true,
		},
		{
			name:   "case insensitive",
			answer: "COULD YOU tell me the area you want?",
			want:   true,
		},
		{
			name:   "phrase without question mark",
			answer: "Could you share your budget when you get a chance.",
			want:   false,
		},
		{
			name:   "question mark without phrase",
			answer: "Shall I book a viewing for the Sanepa flat?",
			want:   false,
		},
		{
			name:   "plain answer",
			answer: "Here are 5 listings in Baneshwor within your budget.",
			want:   false,
		},
		{
			name:   "empty",
			answer: "",
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := needsClarification(tc.answer); got != tc.want {
				t.Errorf("needsClarification(%q) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestDefaultAnswerTriggersClarification(t *testing.T) {
	if !needsClarification(defaultAnswer) {
		t.Errorf("default answer %q must read as a clarification request", defaultAnswer)
	}
}
