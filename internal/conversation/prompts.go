package conversation

import (
	"strings"
	"text/template"
)

var (
	elaborationTmpl = template.Must(template.New("elaboration").Parse(`Below is a sparse profile of a customer, as JSON.

{{.Persona}}

Write a detailed first-person description of this person: upbringing, family, daily routine, work, money habits, worries, hopes, and how they usually react to salespeople. Invent concrete details where the profile is silent, but never contradict it. Write prose only.`))

	innerActivityTmpl = template.Must(template.New("inner_activity").Parse(`You are role-playing a customer in a sales conversation. Stay fully in character.

Who you are:
{{.Persona}}

Your current state of mind:
{{if .CurrentState}}{{.CurrentState}}{{else}}(no particular expectations){{end}}

Conversation so far:
{{if .Transcript}}{{.Transcript}}{{else}}(nothing has been said yet){{end}}

The salesperson now says:
{{.Question}}

Write your private inner monologue about this: what you think and feel, what you suspect, and what you want. Do not write what you say out loud.`))

	responseTmpl = template.Must(template.New("response").Parse(`You are role-playing a customer in a sales conversation. Stay fully in character.

Who you are:
{{.Persona}}

Your private thoughts right now:
{{.InnerActivity}}

Conversation so far:
{{if .Transcript}}{{.Transcript}}{{else}}(nothing has been said yet){{end}}

The salesperson now says:
{{.Question}}

Reply as the customer. Output only the words you say out loud, with no narration, stage directions or commentary.`))

	judgeTmpl = template.Must(template.New("judge").Parse(`You are judging one step of a sales training conversation.

Stage objective:
{{.Objective}}

The salesperson said:
{{.Utterance}}

The customer's private thoughts:
{{.InnerActivity}}

The customer replied:
{{.Reply}}

Has this exchange met the stage objective? Answer with exactly one word: {{.Affirmative}} if it has, {{.Negative}} if it has not.`))
)

type elaborationPrompt struct {
	Persona string
}

type innerActivityPrompt struct {
	Persona      string
	CurrentState string
	Transcript   string
	Question     string
}

type responsePrompt struct {
	Persona       string
	InnerActivity string
	Transcript    string
	Question      string
}

type judgePrompt struct {
	Objective     string
	Utterance     string
	InnerActivity string
	Reply         string
	Affirmative   string
	Negative      string
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
