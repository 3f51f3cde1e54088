package agentloop

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

var (
	arithmeticRe  = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*([+\-*/])\s*(-?\d+(?:\.\d+)?)`)
	firstNumberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

const (
	maxNegativeExamples  = 5
	challengeRecordLimit = 200
)

// SolveArithmetic answers a "<number> <op> <number>" challenge locally.
// Division by zero and anything the pattern does not match report false so
// the caller can fall back to the LLM.
func SolveArithmetic(challengeText string) (string, bool) {
	m := arithmeticRe.FindStringSubmatch(strings.TrimSpace(challengeText))
	if m == nil {
		return "", false
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[3], 64)
	if errA != nil || errB != nil {
		return "", false
	}

	var result float64
	switch m[2] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return "", false
		}
		result = a / b
	default:
		return "", false
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return "", false
	}

	// Round to 6 decimal places; integers render without a decimal point.
	rounded := math.Round(result*1e6) / 1e6
	return strconv.FormatFloat(rounded, 'f', -1, 64), true
}

// solveAndVerify answers a platform challenge and submits the answer. A
// submission failure is recorded and swallowed so the surrounding action
// still completes.
func (e *Engine) solveAndVerify(ctx context.Context, st *state.State, v *moltbook.Verification, logLabel string) {
	if v == nil || v.VerificationCode == "" || v.ChallengeText == "" {
		return
	}

	method := "local"
	answer, ok := SolveArithmetic(v.ChallengeText)
	if !ok {
		method = "llm"
		answer, ok = e.solveWithLLM(ctx, st, v.ChallengeText)
		if !ok {
			log.Error().Str("label", logLabel).Msg("Verification challenge could not be solved")
			return
		}
	}

	result, err := e.platform.VerifyContent(ctx, st.MoltbookAPIKey, v.VerificationCode, answer)
	success := err == nil
	if success {
		log.Info().Str("label", logLabel).Str("answer", answer).Str("message", result.Message).Msg("Verification submitted")
		e.metrics.VerificationsTotal.WithLabelValues(method, "success").Inc()
	} else {
		log.Error().Err(err).Str("label", logLabel).Str("answer", answer).Msg("Verification failed")
		e.metrics.VerificationsTotal.WithLabelValues(method, "failure").Inc()
	}

	challenge := v.ChallengeText
	if len(challenge) > challengeRecordLimit {
		challenge = challenge[:challengeRecordLimit]
	}
	if recErr := e.store.AppendVerification(state.VerificationAttempt{
		ChallengeText: challenge,
		Answer:        answer,
		Success:       success,
		At:            e.now(),
	}); recErr != nil {
		log.Error().Err(recErr).Msg("Failed to record verification attempt")
	}
}

// solveWithLLM falls back to the provider router, feeding back up to 5
// previously wrong answers so they are not repeated.
func (e *Engine) solveWithLLM(ctx context.Context, st *state.State, challengeText string) (string, bool) {
	var failed []state.VerificationAttempt
	for _, attempt := range st.VerificationHistory {
		if !attempt.Success {
			failed = append(failed, attempt)
			if len(failed) == maxNegativeExamples {
				break
			}
		}
	}

	historyBlock := ""
	if len(failed) > 0 {
		var sb strings.Builder
		sb.WriteString("\nYou previously got these wrong, do not repeat the same answer:\n")
		for _, attempt := range failed {
			challenge := attempt.ChallengeText
			if len(challenge) > 120 {
				challenge = challenge[:120]
			}
			fmt.Fprintf(&sb, "- Challenge: %q, you answered %q (incorrect).\n", challenge, attempt.Answer)
		}
		historyBlock = sb.String()
	}

	prompt := fillTemplate(e.currentSettings().Prompts.Verification, map[string]string{
		"challengeText": challengeText,
		"historyBlock":  historyBlock,
	})

	result, err := e.caller.Call(ctx, prompt, e.callOptions())
	if err != nil {
		log.Error().Err(err).Msg("LLM verification solve failed")
		return "", false
	}

	if num := firstNumberRe.FindString(result.Text); num != "" {
		return num, true
	}
	answer := strings.TrimSpace(result.Text)
	return answer, answer != ""
}
