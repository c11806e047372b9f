package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/adapter/metrics"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// maliciousLabels mark the positive class: fine-tuned BERT heads emit
// LABEL_1, chat models emit PHISHING.
var maliciousLabels = []string{"LABEL_1", "PHISHING"}

// Validate checks a raw model answer and normalizes the label to upper case.
func Validate(label string, probability *float64) (ports.Classification, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return ports.Classification{}, errors.New("missing label")
	}
	if probability == nil {
		return ports.Classification{}, errors.New("missing probability")
	}
	p := *probability
	// Some models answer in percent
	if p > 1 && p <= 100 {
		p /= 100
	}
	if p < 0 || p > 1 {
		return ports.Classification{}, fmt.Errorf("probability %v out of range", *probability)
	}
	return ports.Classification{Label: label, Probability: p}, nil
}

// IsMaliciousLabel reports whether label names the positive class.
func IsMaliciousLabel(label string) bool {
	upper := strings.ToUpper(label)
	if strings.HasPrefix(upper, "NOT") || strings.HasPrefix(upper, "NON") {
		return false
	}
	for _, l := range maliciousLabels {
		if strings.Contains(upper, l) {
			return true
		}
	}
	return false
}

// Confidence maps a classification onto "probability the content is malicious".
// A benign label with probability p yields 1-p.
func Confidence(c ports.Classification) float64 {
	p := domain.Clamp(c.Probability, 0, 1)
	if IsMaliciousLabel(c.Label) {
		return p
	}
	return 1 - p
}

// ClassifyConfidence runs the classifier and turns every failure into absence.
func ClassifyConfidence(ctx context.Context, classifier ports.Classifier, text string, logger *zap.Logger) domain.Result[float64] {
	if classifier == nil || !classifier.IsEnabled() {
		metrics.RecordAbsent(string(domain.SourceClassifier))
		return domain.Absent[float64]("classifier disabled")
	}
	if strings.TrimSpace(text) == "" {
		return domain.Absent[float64]("empty text")
	}

	c, err := classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("classifier unavailable, using heuristic fallback",
			zap.String("classifier", classifier.Name()),
			zap.String("cause", err.Error()),
		)
		metrics.RecordAbsent(string(domain.SourceClassifier))
		return domain.Absent[float64](err.Error())
	}
	return domain.Present(Confidence(c))
}
