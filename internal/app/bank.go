package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"survey-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// QuestionLoader fetches the question list from a backing store (file, Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank is the immutable, ordered question list loaded at startup.
type QuestionBank struct {
	questions []domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewQuestionBank copies questions into a bank shuffled by a time-seeded PCG source.
func NewQuestionBank(questions []domain.Question) (*QuestionBank, error) {
	seed := uint64(time.Now().UnixNano())
	return NewQuestionBankWithRand(questions, rand.New(rand.NewPCG(seed, seed>>1|1)))
}

// NewQuestionBankWithRand lets tests pin the shuffle order.
func NewQuestionBankWithRand(questions []domain.Question, rnd *rand.Rand) (*QuestionBank, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionBank
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question %d: empty text", i+1)
		}
	}
	return &QuestionBank{
		questions: cloneQuestions(questions),
		rnd:       rnd,
	}, nil
}

// LoadQuestionBank builds a bank from a loader. Any failure is a startup error.
func LoadQuestionBank(ctx context.Context, loader QuestionLoader) (*QuestionBank, error) {
	questions, err := loader.LoadQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return NewQuestionBank(questions)
}

// Len returns the number of questions in the bank.
func (b *QuestionBank) Len() int {
	return len(b.questions)
}

// Questions returns a copy of the bank in its original order.
func (b *QuestionBank) Questions() []domain.Question {
	return cloneQuestions(b.questions)
}

// ShuffledCopy returns a uniformly random permutation of the whole bank.
func (b *QuestionBank) ShuffledCopy() []domain.Question {
	out := cloneQuestions(b.questions)
	b.mu.Lock()
	b.rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	b.mu.Unlock()
	return out
}

func cloneQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		out[i] = domain.Question{Text: q.Text}
		if len(q.Meta) > 0 {
			out[i].Meta = make(map[string]string, len(q.Meta))
			for k, v := range q.Meta {
				out[i].Meta[k] = v
			}
		}
	}
	return out
}

// FileQuestionLoader reads a JSON or YAML question list from disk.
type FileQuestionLoader struct {
	path string
}

func NewFileQuestionLoader(path string) *FileQuestionLoader {
	return &FileQuestionLoader{path: path}
}

func (l *FileQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		return ParseQuestionsYAML(data)
	default:
		return ParseQuestionsJSON(data)
	}
}

// ParseQuestionsJSON decodes a JSON array whose items are bare strings or objects.
func ParseQuestionsJSON(data []byte) ([]domain.Question, error) {
	var raw []rawQuestion
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return foldQuestions(raw)
}

// ParseQuestionsYAML decodes a YAML sequence with the same item shapes as JSON.
func ParseQuestionsYAML(data []byte) ([]domain.Question, error) {
	var raw []rawQuestion
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return foldQuestions(raw)
}

func foldQuestions(raw []rawQuestion) ([]domain.Question, error) {
	if len(raw) == 0 {
		return nil, domain.ErrEmptyQuestionBank
	}
	out := make([]domain.Question, 0, len(raw))
	for i, r := range raw {
		text := strings.TrimSpace(r.text)
		if text == "" {
			return nil, fmt.Errorf("question %d: missing text", i+1)
		}
		out = append(out, domain.Question{Text: text, Meta: r.meta})
	}
	return out, nil
}

// rawQuestion accepts either "text" or {"text"|"question": "...", ...metadata}.
type rawQuestion struct {
	text string
	meta map[string]string
}

func (r *rawQuestion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.text = s
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("question must be a string or an object: %w", err)
	}
	return r.fromMap(obj)
}

func (r *rawQuestion) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.text = node.Value
		return nil
	}
	var obj map[string]any
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("question must be a string or a mapping: %w", err)
	}
	return r.fromMap(obj)
}

func (r *rawQuestion) fromMap(obj map[string]any) error {
	for _, key := range []string{"text", "question"} {
		if v, ok := obj[key]; ok {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("question %q field must be a string", key)
			}
			r.text = s
			delete(obj, key)
			break
		}
	}
	if len(obj) > 0 {
		r.meta = make(map[string]string, len(obj))
		for k, v := range obj {
			r.meta[k] = fmt.Sprint(v)
		}
	}
	return nil
}
