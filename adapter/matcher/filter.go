package matcher

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

// CompileFilter turns a filter document into a [domain.Filter]. Every member
// is a condition on one field path:
//
//	{"name": "eliot"}                      equality
//	{"name": {"$eq": "eliot"}}             explicit equality
//	{"name": regexp.MustCompile("^e")}     regex
//	{"name": primitive.Regex{Pattern: "^e", Options: "i"}}
//	{"name": {"$regex": "^e", "$options": "i"}}
//
// A document value without "$" keys is matched by equality.
func CompileFilter(in any) (domain.Filter, error) {
	fields, err := data.Fields(in)
	if err != nil {
		return domain.Filter{}, err
	}

	f := domain.Filter{Predicates: make([]domain.Predicate, 0, len(fields))}
	for _, field := range fields {
		if err := checkPath(field.Key); err != nil {
			return domain.Filter{}, err
		}
		preds, err := compileField(field.Key, field.Value)
		if err != nil {
			return domain.Filter{}, err
		}
		f.Predicates = append(f.Predicates, preds...)
	}
	return f, nil
}

func checkPath(path string) error {
	if strings.HasPrefix(path, "$") {
		return domain.ErrFilter{Field: path, Reason: "unknown operator"}
	}
	for segment := range strings.SplitSeq(path, ".") {
		if segment == "" {
			return domain.ErrFilter{Field: path, Reason: "empty path segment"}
		}
	}
	return nil
}

func compileField(path string, v any) ([]domain.Predicate, error) {
	switch t := v.(type) {
	case *regexp.Regexp:
		return []domain.Predicate{regexPredicate(path, t)}, nil
	case primitive.Regex:
		p, err := compileRegex(path, t.Pattern, t.Options)
		if err != nil {
			return nil, err
		}
		return []domain.Predicate{p}, nil
	}

	if data.IsDocument(v) {
		sub, err := data.Fields(v)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 && strings.HasPrefix(sub[0].Key, "$") {
			return compileOperators(path, sub)
		}
		for _, e := range sub {
			if strings.HasPrefix(e.Key, "$") {
				return nil, domain.ErrFilter{Field: path, Reason: "cannot mix operators and normal fields"}
			}
		}
	}

	val, err := data.NewValue(v)
	if err != nil {
		return nil, err
	}
	return []domain.Predicate{{Field: path, Kind: domain.PredicateEq, Value: val}}, nil
}

func compileOperators(path string, ops []data.E) ([]domain.Predicate, error) {
	var (
		res       []domain.Predicate
		pattern   any
		options   string
		hasOption bool
	)
	for _, op := range ops {
		switch op.Key {
		case "$eq":
			val, err := data.NewValue(op.Value)
			if err != nil {
				return nil, err
			}
			res = append(res, domain.Predicate{Field: path, Kind: domain.PredicateEq, Value: val})
		case "$regex":
			pattern = op.Value
		case "$options":
			s, ok := op.Value.(string)
			if !ok {
				return nil, domain.ErrFilter{Field: path, Reason: "$options must be a string"}
			}
			options, hasOption = s, true
		default:
			if strings.HasPrefix(op.Key, "$") {
				return nil, domain.ErrFilter{Field: path, Reason: "unknown operator " + op.Key}
			}
			return nil, domain.ErrFilter{Field: path, Reason: "cannot mix operators and normal fields"}
		}
	}

	switch t := pattern.(type) {
	case nil:
		if hasOption {
			return nil, domain.ErrFilter{Field: path, Reason: "$options needs $regex"}
		}
	case string:
		p, err := compileRegex(path, t, options)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	case *regexp.Regexp:
		if hasOption {
			p, err := compileRegex(path, t.String(), options)
			if err != nil {
				return nil, err
			}
			res = append(res, p)
		} else {
			res = append(res, regexPredicate(path, t))
		}
	case primitive.Regex:
		p, err := compileRegex(path, t.Pattern, t.Options+options)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	default:
		return nil, domain.ErrFilter{Field: path, Reason: "$regex must be a string or a regular expression"}
	}
	return res, nil
}

// compileRegex builds a regex predicate from a pattern and mongo style option
// letters. Only the i, m and s options are supported.
func compileRegex(path, pattern, options string) (domain.Predicate, error) {
	var flags strings.Builder
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			if !strings.ContainsRune(flags.String(), o) {
				flags.WriteRune(o)
			}
		default:
			return domain.Predicate{}, domain.ErrFilter{Field: path, Reason: "unsupported regex option " + string(o)}
		}
	}
	if flags.Len() > 0 {
		pattern = "(?" + flags.String() + ")" + pattern
	}
	r, err := regexp.Compile(pattern)
	if err != nil {
		return domain.Predicate{}, domain.ErrFilter{Field: path, Reason: err.Error()}
	}
	return regexPredicate(path, r), nil
}

func regexPredicate(path string, r *regexp.Regexp) domain.Predicate {
	prefix, bounded := Prefix(r.String())
	return domain.Predicate{
		Field:   path,
		Kind:    domain.PredicateRegex,
		Pattern: r.String(),
		Prefix:  prefix,
		Bounded: bounded,
		Match:   r.MatchString,
	}
}
