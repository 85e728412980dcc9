package rewards

import (
	"fmt"
	"math/rand"

	"github.com/teachertools/classbank/classbank/config"
	"github.com/teachertools/classbank/classbank/database/models"
)

// MathProblem is one server-generated arithmetic question. The answer never
// leaves the server; settlement compares it against the raw submission.
type MathProblem struct {
	Left     int    `json:"left"`
	Right    int    `json:"right"`
	Operator string `json:"operator"`
	Answer   int    `json:"answer"`
}

// MathChallenge is the jsonb payload stored on a math session.
type MathChallenge struct {
	Problems []MathProblem `json:"problems"`
}

// MathSubmission is the raw client input at settlement: one answer per
// problem, in order. Missing answers score as wrong.
type MathSubmission struct {
	Answers []int `json:"answers"`
}

func (p MathProblem) String() string {
	return fmt.Sprintf("%d %s %d", p.Left, p.Operator, p.Right)
}

// GenerateMathChallenge builds the problem set for one session. Harder
// difficulties widen the operand range and add operators.
func GenerateMathChallenge(difficulty models.GameDifficulty) MathChallenge {
	var maxOperand int
	var operators []string

	switch difficulty {
	case models.DifficultyMedium:
		maxOperand = 25
		operators = []string{"+", "-", "*"}
	case models.DifficultyHard:
		maxOperand = 50
		operators = []string{"+", "-", "*", "/"}
	default:
		maxOperand = 10
		operators = []string{"+", "-"}
	}

	problems := make([]MathProblem, config.MathProblemCount)
	for i := range problems {
		problems[i] = generateProblem(maxOperand, operators)
	}
	return MathChallenge{Problems: problems}
}

func generateProblem(maxOperand int, operators []string) MathProblem {
	op := operators[rand.Intn(len(operators))]
	left := rand.Intn(maxOperand) + 1
	right := rand.Intn(maxOperand) + 1

	switch op {
	case "+":
		return MathProblem{Left: left, Right: right, Operator: op, Answer: left + right}
	case "-":
		// Keep results non-negative for classroom arithmetic
		if right > left {
			left, right = right, left
		}
		return MathProblem{Left: left, Right: right, Operator: op, Answer: left - right}
	case "*":
		return MathProblem{Left: left, Right: right, Operator: op, Answer: left * right}
	default:
		// Build divisions backwards so they always come out exact
		quotient := rand.Intn(9) + 1
		divisor := rand.Intn(9) + 2
		return MathProblem{Left: quotient * divisor, Right: divisor, Operator: "/", Answer: quotient}
	}
}

// ScoreMath recomputes correctness from the stored challenge and the raw
// submitted answers. Client-side scores are never consulted.
func ScoreMath(challenge MathChallenge, submission MathSubmission) int {
	correct := 0
	for i, problem := range challenge.Problems {
		if i >= len(submission.Answers) {
			break
		}
		if submission.Answers[i] == problem.Answer {
			correct++
		}
	}
	return correct
}
