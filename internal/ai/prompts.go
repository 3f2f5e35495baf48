package ai

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptSet holds the prompt templates and the language map. Any field
// can be overridden from a YAML file.
type PromptSet struct {
	System    string            `yaml:"system"`
	Daily     string            `yaml:"daily"`
	Ask       string            `yaml:"ask"`
	Languages map[string]string `yaml:"languages"`
}

const defaultSystem = "You are a professional health analyst specializing in wearable data."

const defaultDaily = `Analyze the user's Oura Ring health data and provide actionable insights.

## Instructions
- Respond in %[1]s
- Be specific with numbers and comparisons
- Highlight significant changes (positive or negative)
- Provide practical, personalized daily recommendations
- Keep a warm, encouraging but honest tone
- Use emoji to make the report more engaging
- Format the response using basic HTML tags (<b>, <i>, <code>, <pre>). NEVER use markdown asterisks.

## Data Provided
### Today's Data
%[2]s

### Trailing Trend
%[3]s

## Required Report Format

📊 <b>Today's Health Overview</b>
Brief 1-2 sentence summary of overall health status today.

💤 <b>Sleep Analysis</b>
Score vs the trailing average, duration and stage breakdown, HRV and heart rate during sleep, notable patterns.

🏃 <b>Activity Analysis</b>
Activity score, steps, active calorie burn, movement intensity breakdown, comparison to the recent average.

⚡ <b>Readiness Assessment</b>
Readiness score and key contributors, HRV balance and resting heart rate trends, recovery status, temperature deviation if notable.

📈 <b>Trend Insights</b>
Key metrics trending up or down, consistency patterns, comparisons to personal baselines.

💡 <b>Today's Recommendations</b>
2-3 specific, actionable suggestions based on ALL of the above data.`

const defaultAsk = "You are a health analyst with access to the user's Oura Ring data. " +
	"Answer their questions based on the data provided. Respond in %s. " +
	"Be specific and use numbers. Format your response using basic HTML tags " +
	"(<b>, <i>, <code>, <pre>). NEVER use markdown asterisks."

func defaultLanguages() map[string]string {
	return map[string]string{
		"zh": "Chinese (Simplified)",
		"en": "English",
		"ja": "Japanese",
		"ko": "Korean",
		"es": "Spanish",
		"fr": "French",
		"de": "German",
	}
}

func DefaultPrompts() *PromptSet {
	return &PromptSet{
		System:    defaultSystem,
		Daily:     defaultDaily,
		Ask:       defaultAsk,
		Languages: defaultLanguages(),
	}
}

// LoadPrompts reads a YAML override file; fields left empty keep their
// defaults.
func LoadPrompts(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read prompts file %s: %w", path, err)
	}
	var override PromptSet
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("cannot parse prompts file %s: %w", path, err)
	}

	ps := DefaultPrompts()
	if override.System != "" {
		ps.System = override.System
	}
	if override.Daily != "" {
		ps.Daily = override.Daily
	}
	if override.Ask != "" {
		ps.Ask = override.Ask
	}
	for code, name := range override.Languages {
		ps.Languages[code] = name
	}
	return ps, nil
}

// LanguageName maps a language code to its spelled-out name. Unknown
// codes pass through unchanged so any language the model understands
// can be configured.
func (p *PromptSet) LanguageName(code string) string {
	if name, ok := p.Languages[code]; ok {
		return name
	}
	if code == "" {
		return "English"
	}
	return code
}

// DailyPrompt fills the daily analysis template.
func (p *PromptSet) DailyPrompt(language, todayData, trendData string) string {
	return fmt.Sprintf(p.Daily, language, todayData, trendData)
}

// AskSystem fills the question-answering system prompt.
func (p *PromptSet) AskSystem(language string) string {
	// The template may or may not reference the language.
	if strings.Contains(p.Ask, "%s") {
		return fmt.Sprintf(p.Ask, language)
	}
	return p.Ask
}
