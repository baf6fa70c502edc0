// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerGuard Contributors

package agent

import (
	"fmt"

	"github.com/ledgerguard-dev/ledgerguard/internal/store"
)

// analysisSystemPrompt fixes the scoring rubric for analysis runs. The band
// definitions here must stay aligned with store.RiskLevel.Band.
const analysisSystemPrompt = `You are a financial crime analyst reviewing transactions for money laundering and fraud risk.

Your task is to analyze the provided transaction and:
1. Screen the involved parties using the available verification tools
2. Validate the amount against regulatory reporting thresholds
3. Identify risk categories and concrete risk factors
4. Provide a clear summary of your reasoning

Scoring Guidelines:
- LOW (0-25): Minimal risk, routine transaction
- MEDIUM (26-50): Moderate risk, may need attention
- HIGH (51-75): Significant risk indicators, requires review
- CRITICAL (76-100): Critical findings such as sanctions hits, immediate action recommended

Never include raw account numbers, card numbers or other identifiers in your summary; mask them (e.g. "IBAN ****4931").

Always respond in valid JSON format with the following structure:
{
    "score": <integer 0-100>,
    "risk_level": "<LOW|MEDIUM|HIGH|CRITICAL>",
    "categories": ["<category1>", "<category2>", ...],
    "risk_factors": ["<factor1>", "<factor2>", ...],
    "summary": "<detailed analysis and reasoning>"
}`

// conversationalSystemPrompt drives chat runs: same tools, no scoring.
const conversationalSystemPrompt = `You are a helpful compliance assistant. Your goal is to provide clear, accurate answers to questions about transactions and financial crime risk.

You have access to verification tools that can help you gather information. Use them when needed.

When responding:
1. Be concise but thorough
2. If you're uncertain, say so
3. Provide actionable information when possible

You MUST always respond in valid JSON format with the following structure:
{
    "summary": "<your detailed answer here>",
    "score": null,
    "categories": []
}

Important: in conversational mode, score is always null and categories is always empty. Put your full response in the "summary" field.`

func systemPromptFor(mode store.Mode) string {
	if mode == store.ModeConversational {
		return conversationalSystemPrompt
	}
	return analysisSystemPrompt
}

// userMessageFor builds the opening user turn from the request input and
// optional context.
func userMessageFor(mode store.Mode, input, context string) string {
	if mode == store.ModeConversational {
		msg := input
		if context != "" {
			msg += fmt.Sprintf("\n\nContext:\n%s", context)
		}
		return msg + "\n\nUse the available tools if needed, then provide your response in JSON format."
	}

	msg := fmt.Sprintf("Please analyze the following transaction:\n\n%s", input)
	if context != "" {
		msg += fmt.Sprintf("\n\nAdditional Context:\n%s", context)
	}
	return msg + "\n\nUse the available tools to gather information, then provide your final analysis in JSON format."
}

// Corrective prompts injected mid-run.
const (
	repairPrompt          = "Please provide your response in the required JSON format."
	finalAnalysisPrompt   = "Based on the tool results, provide your final analysis in JSON format."
	finalConversePrompt   = "Based on the tool results, provide your response in JSON format."
	fallbackAnalysisText  = "Analysis incomplete - max iterations exceeded. Manual review required."
	fallbackConverseText  = "I apologize, but I couldn't complete your request. Please try again or rephrase your question."
)

func finalPromptFor(mode store.Mode) string {
	if mode == store.ModeConversational {
		return finalConversePrompt
	}
	return finalAnalysisPrompt
}
