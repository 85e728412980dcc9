package rewards

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/teachertools/classbank/classbank/config"
)

// LetterMark is the per-letter feedback of one guess.
type LetterMark string

const (
	MarkHit     LetterMark = "hit"     // right letter, right spot
	MarkPresent LetterMark = "present" // right letter, wrong spot
	MarkMiss    LetterMark = "miss"
)

// WordChallenge is the jsonb payload stored on a word session. The target
// stays server-side; settlement replays the guesses against it.
type WordChallenge struct {
	Target string `json:"target"`
}

// WordSubmission is the raw guess sequence submitted at settlement.
type WordSubmission struct {
	Guesses []string `json:"guesses"`
}

// WordOutcome is the recomputed result of a word session.
type WordOutcome struct {
	Won         bool           `json:"won"`
	GuessesUsed int            `json:"guesses_used"`
	Marks       [][]LetterMark `json:"marks"`
}

// GenerateWordChallenge picks a target word for one session.
func GenerateWordChallenge() WordChallenge {
	return WordChallenge{Target: wordList[rand.Intn(len(wordList))]}
}

// ScoreWord replays the raw guesses against the stored target. The outcome
// and the correct-unit count are derived entirely server-side; a won game is
// worth one unit per unused guess plus one, a lost game is worth zero.
func ScoreWord(challenge WordChallenge, submission WordSubmission) (WordOutcome, int, error) {
	target := strings.ToLower(challenge.Target)
	if len(target) != config.WordLength {
		return WordOutcome{}, 0, fmt.Errorf("invalid target word %q", challenge.Target)
	}

	outcome := WordOutcome{Marks: make([][]LetterMark, 0, len(submission.Guesses))}
	for i, guess := range submission.Guesses {
		if i >= config.WordMaxGuesses {
			break
		}
		guess = strings.ToLower(strings.TrimSpace(guess))
		if err := validateGuess(guess); err != nil {
			return WordOutcome{}, 0, fmt.Errorf("guess %d: %w", i+1, err)
		}

		outcome.Marks = append(outcome.Marks, markGuess(target, guess))
		outcome.GuessesUsed = i + 1
		if guess == target {
			outcome.Won = true
			break
		}
	}

	if !outcome.Won {
		return outcome, 0, nil
	}
	return outcome, config.WordMaxGuesses - outcome.GuessesUsed + 1, nil
}

func validateGuess(guess string) error {
	if len(guess) != config.WordLength {
		return fmt.Errorf("must be %d letters, got %d", config.WordLength, len(guess))
	}
	for _, r := range guess {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("contains non-letter %q", r)
		}
	}
	return nil
}

// markGuess computes per-letter feedback with correct duplicate handling:
// hits consume their letter first, then presents are awarded left to right
// from what remains.
func markGuess(target, guess string) []LetterMark {
	marks := make([]LetterMark, config.WordLength)
	remaining := make(map[byte]int)

	for i := 0; i < config.WordLength; i++ {
		if guess[i] == target[i] {
			marks[i] = MarkHit
		} else {
			remaining[target[i]]++
		}
	}

	for i := 0; i < config.WordLength; i++ {
		if marks[i] == MarkHit {
			continue
		}
		if remaining[guess[i]] > 0 {
			marks[i] = MarkPresent
			remaining[guess[i]]--
		} else {
			marks[i] = MarkMiss
		}
	}
	return marks
}
