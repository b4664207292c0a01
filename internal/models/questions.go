package models

// QuestionQueue walks the patient through a fixed list of follow-up questions.
type QuestionQueue struct {
	Questions []string       `json:"questions"`
	Cursor    int            `json:"cursor"`
	Answers   map[int]string `json:"answers"`
}

func NewQuestionQueue(questions []string) *QuestionQueue {
	return &QuestionQueue{
		Questions: append([]string(nil), questions...),
		Cursor:    0,
		Answers:   map[int]string{},
	}
}

// Current returns the question at the cursor or an empty string for an empty queue.
func (q *QuestionQueue) Current() string {
	if q == nil || len(q.Questions) == 0 {
		return ""
	}
	return q.Questions[q.Cursor]
}

func (q *QuestionQueue) IsLast() bool {
	return q == nil || q.Cursor >= len(q.Questions)-1
}

// Answer records the answer for the current question and moves to the next one. The cursor stays on the last
// question once it is reached.
func (q *QuestionQueue) Answer(answer string) {
	if q == nil || len(q.Questions) == 0 {
		return
	}
	if q.Answers == nil {
		q.Answers = map[int]string{}
	}
	q.Answers[q.Cursor] = answer
	if !q.IsLast() {
		q.Cursor++
	}
}
