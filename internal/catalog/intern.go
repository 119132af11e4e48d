package catalog

import "context"

// Interner canonicalizes variable definitions and keywords within one
// transaction. It consults an in-memory key->id map first, which covers
// rows staged earlier in the same uncommitted transaction, then the
// database, and only then inserts a new canonical row.
//
// The map is rebuilt lazily per transaction rather than cached globally:
// another writer may have committed new canonical rows since the last
// reconciliation.
type Interner struct {
	tx        *Tx
	variables map[string]int64
	keywords  map[string]int64
}

// NewInterner creates an interner bound to the given transaction.
func NewInterner(tx *Tx) *Interner {
	return &Interner{
		tx:        tx,
		variables: make(map[string]int64),
		keywords:  make(map[string]int64),
	}
}

// InternVariable returns the canonical row id for a variable definition,
// creating it if this is the first time its (name, long_name) key is seen.
// A definition whose key matches an existing row reuses that row even when
// its standard_name or units differ; the first-seen values win.
func (in *Interner) InternVariable(ctx context.Context, def *VariableDefinition) (int64, error) {
	key := def.Key()
	if id, ok := in.variables[key]; ok {
		return id, nil
	}

	id, err := in.tx.findVariableDefinition(ctx, def.Name, def.LongName)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		if err := in.tx.insertVariableDefinition(ctx, def); err != nil {
			return 0, err
		}
		id = def.ID
	}

	in.variables[key] = id
	return id, nil
}

// InternKeyword returns the canonical row id for a keyword, creating it if
// its lowercased form has not been seen. "Ocean" and "ocean" intern to the
// same row; the first-seen casing is preserved in the raw column.
func (in *Interner) InternKeyword(ctx context.Context, word string) (int64, error) {
	key := KeywordKey(word)
	if id, ok := in.keywords[key]; ok {
		return id, nil
	}

	id, err := in.tx.findKeyword(ctx, key)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		kw := &Keyword{Keyword: key, Raw: word}
		if err := in.tx.insertKeyword(ctx, kw); err != nil {
			return 0, err
		}
		id = kw.ID
	}

	in.keywords[key] = id
	return id, nil
}
