package app

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownClassIndex: индекс класса вне таблицы имён
var ErrUnknownClassIndex = errors.New("unknown class index")

// UnknownClassIndexError несёт индекс и размер таблицы
type UnknownClassIndexError struct {
	Index int
	Size  int
}

func (e *UnknownClassIndexError) Error() string {
	return fmt.Sprintf("unknown class index %d (table has %d names)", e.Index, e.Size)
}

// Is позволяет сравнивать через errors.Is с ErrUnknownClassIndex
func (e *UnknownClassIndexError) Is(target error) bool {
	return target == ErrUnknownClassIndex
}

// LabelResolver сопоставляет индекс класса с его названием.
// Таблица загружается один раз при старте и дальше только читается.
type LabelResolver struct {
	names []string
}

// NewLabelResolver создаёт резолвер по готовому списку имён
func NewLabelResolver(names []string) *LabelResolver {
	cp := make([]string, len(names))
	copy(cp, names)
	return &LabelResolver{names: cp}
}

// LoadLabelResolver читает yaml-файл датасета с ключом names.
// names может быть списком или словарём индекс → имя, как в разных версиях yolov5.
func LoadLabelResolver(path string) (*LabelResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels file: %w", err)
	}

	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse labels file: %w", err)
	}

	names, err := decodeNames(&doc.Names)
	if err != nil {
		return nil, fmt.Errorf("labels file %s: %w", path, err)
	}
	return NewLabelResolver(names), nil
}

func decodeNames(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil, err
		}
		return names, nil

	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return nil, err
		}
		indexes := make([]int, 0, len(byIndex))
		for i := range byIndex {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)

		names := make([]string, len(indexes))
		for pos, i := range indexes {
			if i != pos {
				return nil, fmt.Errorf("names: index %d is missing", pos)
			}
			names[pos] = byIndex[i]
		}
		return names, nil

	default:
		return nil, errors.New("names must be a list or a map")
	}
}

// Resolve возвращает имя класса по индексу
func (r *LabelResolver) Resolve(index int) (string, error) {
	if index < 0 || index >= len(r.names) {
		return "", &UnknownClassIndexError{Index: index, Size: len(r.names)}
	}
	return r.names[index], nil
}

// Len возвращает размер таблицы
func (r *LabelResolver) Len() int {
	return len(r.names)
}

// Names возвращает копию таблицы
func (r *LabelResolver) Names() []string {
	cp := make([]string, len(r.names))
	copy(cp, r.names)
	return cp
}
