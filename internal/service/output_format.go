package service

import (
	"regexp"
	"strings"
)

// FormatModelOutput normaliza la salida del modelo para mostrarla: quita BOM
// y espacio sobrante, cierra fences de código sin balancear y etiqueta los
// fences sin lenguaje con uno detectado por heurística. No se aplica nunca
// antes de persistir; el contenido guardado es el que devolvió el modelo.
func FormatModelOutput(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "\uFEFF")

	lines := strings.Split(s, "\n")
	inFence := false
	openIdx := -1
	var block []string

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			if inFence {
				block = append(block, line)
			}
			continue
		}
		if !inFence {
			inFence = true
			openIdx = i
			block = block[:0]
			continue
		}
		// Cierre de fence: si la apertura no traía lenguaje, etiquetarla.
		if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[openIdx]), "```")) == "" {
			if lang := DetectCodeLanguage(strings.Join(block, "\n")); lang != "" {
				lines[openIdx] = "```" + lang
			}
		}
		inFence = false
	}

	if inFence {
		if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[openIdx]), "```")) == "" {
			if lang := DetectCodeLanguage(strings.Join(block, "\n")); lang != "" {
				lines[openIdx] = "```" + lang
			}
		}
		lines = append(lines, "```")
	}

	return strings.Join(lines, "\n")
}

// languageRule es una regla de detección independiente y testeable.
type languageRule struct {
	name    string
	pattern *regexp.Regexp
}

// languageRules se evalúa en orden; gana la primera coincidencia.
var languageRules = []languageRule{
	{"go", regexp.MustCompile(`(?m)^\s*(package \w+|func \w*\(|import \(|type \w+ (struct|interface))`)},
	{"python", regexp.MustCompile(`(?m)^\s*(def \w+\(|class \w+.*:|from \w+ import |import \w+$)`)},
	{"bash", regexp.MustCompile(`(?m)^\s*(#!/bin/|\$ |sudo |apt(-get)? |npm (install|run) |git )`)},
	{"json", regexp.MustCompile(`(?s)^\s*[\[{].*"[^"]+"\s*:`)},
	{"javascript", regexp.MustCompile(`(?m)(=>|^\s*(const|let|var) \w+|function \w*\(|console\.log\()`)},
}

// DetectCodeLanguage devuelve el lenguaje probable de un bloque de código, o
// cadena vacía si ninguna regla coincide.
func DetectCodeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for _, rule := range languageRules {
		if rule.pattern.MatchString(code) {
			return rule.name
		}
	}
	return ""
}
