package collection

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	name  string
	group string
	score float64
}

func sample() *Collection[item] {
	return New(
		item{"a", "red", 3},
		item{"b", "blue", 1},
		item{"c", "red", 2},
		item{"d", "green", 5},
		item{"e", "blue", 2},
	)
}

func name(i item) string     { return i.name }
func group(i item) string    { return i.group }
func score(i item) float64   { return i.score }
func names(c *Collection[item]) []string {
	out := Map(c, name)
	return out.Items()
}

func TestFilterRejectPure(t *testing.T) {
	c := sample()
	red := c.Filter(func(i item) bool { return i.group == "red" })
	rest := c.Reject(func(i item) bool { return i.group == "red" })

	assert.Equal(t, []string{"a", "c"}, names(red))
	assert.Equal(t, []string{"b", "d", "e"}, names(rest))
	assert.Equal(t, 5, c.Len(), "source unchanged")
}

func TestWhereVariants(t *testing.T) {
	c := sample()

	assert.Equal(t, []string{"b", "e"}, names(c.Where(group, "blue")))
	assert.Equal(t, []string{"a", "c", "d"}, names(c.WhereIn(group, []string{"red", "green"})))
	assert.Equal(t, []string{"b", "e"}, names(c.WhereNotIn(group, []string{"red", "green"})))
}

func TestSortIsStable(t *testing.T) {
	c := sample()

	byScore := c.SortByNumber(score, false)
	// b(1), then the score-2 tie keeps source order c before e.
	assert.Equal(t, []string{"b", "c", "e", "a", "d"}, names(byScore))

	desc := c.SortByNumber(score, true)
	assert.Equal(t, []string{"d", "a", "c", "e", "b"}, names(desc))

	byName := c.SortByString(name, true)
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, names(byName))
}

func TestGroupByInsertionOrder(t *testing.T) {
	g := sample().GroupBy(group)

	assert.Equal(t, []string{"red", "blue", "green"}, g.Keys())
	assert.Equal(t, 3, g.Len())

	blue, ok := g.Group("blue")
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "e"}, names(blue))

	_, ok = g.Group("purple")
	assert.False(t, ok)

	var visited []string
	g.Each(func(key string, grp *Collection[item]) {
		visited = append(visited, key+":"+strconv.Itoa(grp.Len()))
	})
	assert.Equal(t, []string{"red:2", "blue:2", "green:1"}, visited)
}

func TestCountBy(t *testing.T) {
	counts, keys := sample().CountBy(group)

	assert.Equal(t, []string{"red", "blue", "green"}, keys)
	assert.Equal(t, map[string]int{"red": 2, "blue": 2, "green": 1}, counts)
}

func TestAggregates(t *testing.T) {
	c := sample()

	assert.Equal(t, 13.0, c.SumBy(score))
	assert.Equal(t, 2.6, c.AvgBy(score))

	min, ok := c.MinBy(score)
	assert.True(t, ok)
	assert.Equal(t, 1.0, min)

	max, ok := c.MaxBy(score)
	assert.True(t, ok)
	assert.Equal(t, 5.0, max)
}

func TestAggregatesEmpty(t *testing.T) {
	c := New[item]()

	assert.Equal(t, 0.0, c.SumBy(score))
	assert.Equal(t, 0.0, c.AvgBy(score))

	_, ok := c.MinBy(score)
	assert.False(t, ok)
	_, ok = c.MaxBy(score)
	assert.False(t, ok)
}

func TestUniqueFirstWins(t *testing.T) {
	c := sample().Unique(group)
	assert.Equal(t, []string{"a", "b", "d"}, names(c))
}

func TestMergeIntersectDiff(t *testing.T) {
	a := New(item{name: "a"}, item{name: "b"}, item{name: "c"})
	b := New(item{name: "b"}, item{name: "d"})

	assert.Equal(t, []string{"a", "b", "c", "b", "d"}, names(a.Merge(b)))
	assert.Equal(t, []string{"b"}, names(a.Intersect(b, name)))
	assert.Equal(t, []string{"a", "c"}, names(a.Diff(b, name)))
}

func TestTakeSkipSliceChunk(t *testing.T) {
	c := sample()

	assert.Equal(t, []string{"a", "b"}, names(c.Take(2)))
	assert.Equal(t, []string{"d", "e"}, names(c.Skip(3)))
	assert.Equal(t, []string{"b", "c", "d"}, names(c.Slice(1, 4)))
	assert.Equal(t, 5, c.Take(100).Len())
	assert.True(t, c.Skip(100).IsEmpty())
	assert.True(t, c.Slice(4, 2).IsEmpty())

	chunks := c.Chunk(2)
	assert.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, names(chunks[0]))
	assert.Equal(t, []string{"e"}, names(chunks[2]))
	assert.Nil(t, c.Chunk(0))
}

func TestMutators(t *testing.T) {
	c := New(item{name: "a"})
	c.Add(item{name: "b"})
	c.Push(item{name: "c"})
	assert.Equal(t, 3, c.Len())

	last, ok := c.Pop()
	assert.True(t, ok)
	assert.Equal(t, "c", last.name)

	first, ok := c.Shift()
	assert.True(t, ok)
	assert.Equal(t, "a", first.name)
	assert.Equal(t, []string{"b"}, names(c))

	empty := New[item]()
	_, ok = empty.Pop()
	assert.False(t, ok)
	_, ok = empty.Shift()
	assert.False(t, ok)
}

func TestAccessors(t *testing.T) {
	c := sample()

	v, ok := c.At(2)
	assert.True(t, ok)
	assert.Equal(t, "c", v.name)

	_, ok = c.At(9)
	assert.False(t, ok)

	f, _ := c.First()
	l, _ := c.Last()
	assert.Equal(t, "a", f.name)
	assert.Equal(t, "e", l.name)

	items := c.Items()
	items[0].name = "mutated"
	v, _ = c.At(0)
	assert.Equal(t, "a", v.name, "Items returns a copy")
}

func TestMap(t *testing.T) {
	lengths := Map(sample(), func(i item) int { return len(i.name) })
	assert.Equal(t, 5, lengths.Len())
}
