package matcher

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vinicius-lino-figueiredo/docdb/adapter/data"
	"github.com/vinicius-lino-figueiredo/docdb/domain"
)

type MatcherTestSuite struct {
	suite.Suite
	m *Matcher
}

func (s *MatcherTestSuite) SetupTest() {
	s.m = NewMatcher().(*Matcher)
}

func (s *MatcherTestSuite) match(doc any, filter any) bool {
	d, err := data.NewDocument(doc)
	s.Require().NoError(err)
	f, err := CompileFilter(filter)
	s.Require().NoError(err)
	return s.m.Match(d, f)
}

func (s *MatcherTestSuite) TestEquality() {
	s.True(s.match(data.M{"name": "eliot"}, data.M{"name": "eliot"}))
	s.False(s.match(data.M{"name": "eliot"}, data.M{"name": "emily"}))
	s.False(s.match(data.M{"name": "1"}, data.M{"name": 1}))
	s.True(s.match(data.M{"a": data.M{"b": 2}}, data.M{"a.b": 2}))
	s.True(s.match(data.M{"a": data.M{"b": 2, "c": 3}}, data.M{"a": data.M{"c": 3, "b": 2}}))
	s.True(s.match(data.M{"name": "x", "n": 1}, data.M{"name": "x", "n": 1}))
	s.False(s.match(data.M{"name": "x", "n": 1}, data.M{"name": "x", "n": 2}))
	s.True(s.match(data.M{"n": 1}, data.M{"n": data.M{"$eq": 1}}))
}

func (s *MatcherTestSuite) TestEmptyFilter() {
	s.True(s.match(data.M{"name": "eliot"}, nil))
	s.True(s.match(data.M{}, data.M{}))
}

// Missing fields are equal to null.
func (s *MatcherTestSuite) TestNull() {
	s.True(s.match(data.M{"other": 1}, data.M{"name": nil}))
	s.True(s.match(data.M{"name": nil}, data.M{"name": nil}))
	s.False(s.match(data.M{"name": 1}, data.M{"name": nil}))
	s.True(s.match(data.M{"a": 1}, data.M{"a.b": nil}))
}

func (s *MatcherTestSuite) TestRegex() {
	s.Run("Regexp", func() {
		s.True(s.match(data.M{"name": "eliot"}, data.M{"name": regexp.MustCompile(`^e.*`)}))
		s.False(s.match(data.M{"name": "bob"}, data.M{"name": regexp.MustCompile(`^e.*`)}))
	})
	s.Run("Primitive", func() {
		s.True(s.match(data.M{"name": "Eliot"}, bson.M{"name": primitive.Regex{Pattern: "^e", Options: "i"}}))
	})
	s.Run("Operator", func() {
		s.True(s.match(data.M{"name": "Eliot"}, data.M{"name": data.M{"$regex": "^e", "$options": "i"}}))
		s.False(s.match(data.M{"name": "Eliot"}, data.D{{"name", data.D{{"$regex", "^e"}}}}))
		s.True(s.match(data.M{"name": "aEb"}, data.M{"name": data.M{"$regex": regexp.MustCompile("e"), "$options": "i"}}))
	})
	s.Run("NonString", func() {
		s.False(s.match(data.M{"name": 1}, data.M{"name": regexp.MustCompile(`1`)}))
		s.False(s.match(data.M{}, data.M{"name": regexp.MustCompile(``)}))
	})
	s.Run("EqAndRegex", func() {
		filter := data.M{"name": data.M{"$eq": "emily", "$regex": "^e"}}
		s.True(s.match(data.M{"name": "emily"}, filter))
		s.False(s.match(data.M{"name": "eliot"}, filter))
	})
}

func (s *MatcherTestSuite) TestCompileErrors() {
	for _, f := range []any{
		data.M{"$or": 1},
		data.M{"a..b": 1},
		data.M{"": 1},
		data.M{"a": data.D{{"$gt", 1}}},
		data.M{"a": data.D{{"$eq", 1}, {"b", 1}}},
		data.M{"a": data.D{{"b", 1}, {"$eq", 1}}},
		data.M{"a": data.M{"$regex": 1}},
		data.M{"a": data.M{"$regex": "("}},
		data.M{"a": data.M{"$regex": "a", "$options": "x"}},
		data.M{"a": data.M{"$options": "i"}},
		data.M{"a": data.M{"$regex": "a", "$options": 1}},
	} {
		_, err := CompileFilter(f)
		s.ErrorIs(err, domain.ErrParse, "%v", f)
	}

	_, err := CompileFilter(data.M{"a": true})
	s.ErrorAs(err, &domain.ErrDocumentType{})
	_, err = CompileFilter(42)
	s.ErrorAs(err, &domain.ErrDocumentType{})
}

func (s *MatcherTestSuite) TestPredicates() {
	f, err := CompileFilter(data.D{{"_id", 5}, {"name", regexp.MustCompile(`^el`)}})
	s.NoError(err)
	s.Require().Len(f.Predicates, 2)
	s.Equal(domain.PredicateEq, f.Predicates[0].Kind)
	s.Equal(domain.Int(5), f.Predicates[0].Value)
	s.Equal(domain.PredicateRegex, f.Predicates[1].Kind)
	s.Equal("el", f.Predicates[1].Prefix)
	s.True(f.Predicates[1].Bounded)
}

func (s *MatcherTestSuite) TestPrefix() {
	cases := []struct {
		pattern string
		prefix  string
		bounded bool
	}{
		{`^e.*`, "e", true},
		{`^eli`, "eli", true},
		{`^eli(ot)?`, "eli", true},
		{`^ab*`, "a", true},
		{`^é`, "é", true},
		{`\Afoo`, "foo", true},
		{`^a\.b`, "a.b", true},
		{`e.*`, "", false},
		{`^`, "", false},
		{`^.*`, "", false},
		{`(?i)^e`, "", false},
		{`(?m)^e`, "", false},
		{`^a|^b`, "", false},
		{`x^a`, "", false},
		{`(`, "", false},
		{`^\x{FFFD}x`, "", false},
		{`^a\x{FFFD}`, "a", true},
		{"^b\uFFFD", "b", true},
	}
	for _, c := range cases {
		s.Run(c.pattern, func() {
			prefix, bounded := Prefix(c.pattern)
			s.Equal(c.prefix, prefix)
			s.Equal(c.bounded, bounded)
		})
	}
}

func (s *MatcherTestSuite) TestSuccessor() {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"e", "f", true},
		{"abc", "abd", true},
		{"a\u007f", "a\u0080", true},
		{"a\uD7FF", "a\uE000", true},
		{"a" + string(utf8.MaxRune), "b", true},
		{string(utf8.MaxRune), "", false},
		{"", "", false},
	}
	for _, c := range cases {
		out, ok := Successor(c.in)
		s.Equal(c.out, out, "%q", c.in)
		s.Equal(c.ok, ok, "%q", c.in)
	}
}

// Every string starting with a prefix sorts between the prefix and its
// successor.
func (s *MatcherTestSuite) TestSuccessorBounds() {
	prefix := "el"
	succ, ok := Successor(prefix)
	s.Require().True(ok)
	for _, str := range []string{"el", "eliot", "el\U0010FFFF", "el\xff", "elz"} {
		s.True(strings.Compare(prefix, str) <= 0, str)
		s.True(strings.Compare(str, succ) < 0, str)
	}
	for _, str := range []string{"em", "emily", "e", "f"} {
		s.False(strings.HasPrefix(str, prefix) && strings.Compare(str, succ) < 0, str)
	}
}

func TestMatcherTestSuite(t *testing.T) {
	suite.Run(t, new(MatcherTestSuite))
}
