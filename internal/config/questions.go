/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultQuestions is the built-in interview used when no questions file is configured
var DefaultQuestions = []string{
	"Hello! Could you briefly introduce yourself?",
	"What are your main strengths?",
	"What areas are you working to improve?",
	"Tell us about a recent project you built.",
	"Why do you want to work with us?",
}

// QuestionsFile is the YAML layout of an interview questions file
type QuestionsFile struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestions reads the ordered question list from a YAML file
func LoadQuestions(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file %s: %w", filename, err)
	}

	var file QuestionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse questions file %s: %w", filename, err)
	}

	questions := make([]string, 0, len(file.Questions))
	for i, q := range file.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, fmt.Errorf("question %d in %s is empty", i+1, filename)
		}
		questions = append(questions, q)
	}

	return questions, nil
}

// Questions returns the configured question list, falling back to DefaultQuestions
func (c *Config) Questions() ([]string, error) {
	if c.Interview.QuestionsFile == "" {
		questions := make([]string, len(DefaultQuestions))
		copy(questions, DefaultQuestions)
		return questions, nil
	}
	return LoadQuestions(c.Interview.QuestionsFile)
}
