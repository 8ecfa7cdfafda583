package bundles

import (
	"github.com/wippyai/bundle-lower/errors"
	"github.com/wippyai/bundle-lower/hw"
)

// CleanupStats counts the rewrites one cleanup run applied.
type CleanupStats struct {
	PairsEliminated int
	Scalarized      int
	ArrayFolds      int
	DeadRemoved     int
	Iterations      int
}

// Changed reports whether the run rewrote anything.
func (s CleanupStats) Changed() bool {
	return s.PairsEliminated+s.Scalarized+s.ArrayFolds+s.DeadRemoved > 0
}

// cleaner is the adapter cleanup worklist. Every op that may have become
// rewritable is queued; popping an op applies at most one rule to it and
// re-queues the ops whose operands or users changed.
type cleaner struct {
	d      *hw.Design
	queue  []hw.OpID
	queued map[hw.OpID]bool
	stats  CleanupStats
}

// Canonicalize removes adapter pairs and the array shuffling around them
// until no rule applies. limit bounds the number of worklist steps; 0
// picks a bound proportional to the design. Exceeding the bound returns a
// non-convergence error with the design left in a consistent state.
func Canonicalize(d *hw.Design, limit int) (CleanupStats, error) {
	cl := &cleaner{d: d, queued: make(map[hw.OpID]bool)}
	d.Walk(func(op *hw.Op) bool {
		if adapterKind(op.Kind) {
			cl.push(op.ID)
		}
		return true
	})
	if limit <= 0 {
		limit = 16*len(cl.queue) + 64
	}

	for len(cl.queue) > 0 {
		if cl.stats.Iterations >= limit {
			return cl.stats, errors.NonConvergence(limit)
		}
		cl.stats.Iterations++
		id := cl.queue[0]
		cl.queue = cl.queue[1:]
		delete(cl.queued, id)
		if d.Op(id).Erased() {
			continue
		}
		if err := cl.visit(d.Op(id)); err != nil {
			return cl.stats, err
		}
	}
	return cl.stats, nil
}

func adapterKind(k hw.OpKind) bool {
	switch k {
	case hw.OpPack, hw.OpUnpack, hw.OpArrayGet, hw.OpArrayCreate:
		return true
	}
	return false
}

func (cl *cleaner) push(id hw.OpID) {
	if id == hw.NoOp || cl.queued[id] || !adapterKind(cl.d.Op(id).Kind) {
		return
	}
	cl.queued[id] = true
	cl.queue = append(cl.queue, id)
}

// pushUsers queues every reader of v.
func (cl *cleaner) pushUsers(v hw.ValueID) {
	for _, u := range cl.d.Users(v) {
		cl.push(u)
	}
}

// replace redirects the readers of old to repl and queues them, along
// with repl's producer, which may now have a different number of uses.
func (cl *cleaner) replace(old, repl hw.ValueID) {
	cl.pushUsers(old)
	cl.d.ReplaceAllUses(old, repl)
	cl.push(cl.d.DefiningOp(repl))
}

// erase removes an op whose results are unused and queues the producers
// of its operands.
func (cl *cleaner) erase(op *hw.Op) error {
	operands := append([]hw.ValueID(nil), op.Operands()...)
	if err := cl.d.EraseOp(op.ID); err != nil {
		return err
	}
	for _, v := range operands {
		cl.push(cl.d.DefiningOp(v))
	}
	return nil
}

// dead reports an unread array op. Adapters are never dead: their
// channels carry flow in both directions.
func (cl *cleaner) dead(op *hw.Op) bool {
	if op.Kind != hw.OpArrayGet && op.Kind != hw.OpArrayCreate {
		return false
	}
	for _, r := range op.Results() {
		if cl.d.NumUses(r) > 0 {
			return false
		}
	}
	return true
}

func (cl *cleaner) visit(op *hw.Op) error {
	if cl.dead(op) {
		cl.stats.DeadRemoved++
		return cl.erase(op)
	}
	switch op.Kind {
	case hw.OpPack:
		if unpack, ok := cl.pairedUnpack(op); ok {
			return cl.eliminatePair(op, unpack)
		}
		return cl.scalarizePack(op)
	case hw.OpUnpack:
		if pack, ok := cl.pairedPack(op); ok {
			return cl.eliminatePair(pack, op)
		}
		return cl.scalarizeUnpack(op)
	case hw.OpArrayGet:
		return cl.foldGet(op)
	case hw.OpArrayCreate:
		return cl.foldCreate(op)
	}
	return nil
}

// pairedUnpack returns the Unpack that is the sole reader of pack's bundle.
func (cl *cleaner) pairedUnpack(pack *hw.Op) (*hw.Op, bool) {
	bundle := pack.PackBundle()
	if !cl.d.HasOneUse(bundle) {
		return nil, false
	}
	u := cl.d.Uses(bundle)[0]
	user := cl.d.Op(u.Op)
	if user.Kind != hw.OpUnpack || u.Operand != 0 {
		return nil, false
	}
	return user, true
}

func (cl *cleaner) pairedPack(unpack *hw.Op) (*hw.Op, bool) {
	def := cl.d.DefiningOp(unpack.UnpackBundle())
	if def == hw.NoOp || cl.d.Op(def).Kind != hw.OpPack {
		return nil, false
	}
	pack := cl.d.Op(def)
	if _, ok := cl.pairedUnpack(pack); !ok {
		return nil, false
	}
	return pack, true
}

// eliminatePair wires the Pack's to-channels straight to the Unpack's
// readers and the Unpack's from-channels straight to the Pack's readers.
// A pair that feeds itself would substitute a value by its own
// replacement and is left in place.
func (cl *cleaner) eliminatePair(pack, unpack *hw.Op) error {
	d := cl.d
	for _, v := range unpack.UnpackFromChannels() {
		if d.DefiningOp(v) == pack.ID || d.DefiningOp(v) == unpack.ID {
			return nil
		}
	}
	for _, v := range pack.PackToChannels() {
		if d.DefiningOp(v) == pack.ID || d.DefiningOp(v) == unpack.ID {
			return nil
		}
	}

	to, from := pack.PackToChannels(), unpack.UnpackFromChannels()
	for i, r := range unpack.UnpackToChannels() {
		cl.replace(r, to[i])
	}
	for i, r := range pack.PackFromChannels() {
		cl.replace(r, from[i])
	}
	if err := cl.erase(unpack); err != nil {
		return err
	}
	if err := cl.erase(pack); err != nil {
		return err
	}
	cl.stats.PairsEliminated++
	return nil
}

// scalarizePack splits an arrayed Pack whose bundle array is only read
// element-wise into one Pack per index.
func (cl *cleaner) scalarizePack(pack *hw.Op) error {
	d := cl.d
	shape, ok := hw.ShapeOf(pack.Type)
	if !ok || !shape.Arrayed {
		return nil
	}
	uses := d.Uses(pack.PackBundle())
	if len(uses) == 0 {
		return nil
	}
	for _, u := range uses {
		if d.Op(u.Op).Kind != hw.OpArrayGet {
			return nil
		}
	}

	b := hw.NewBuilder(d, pack.Parent)
	b.SetInsertionPointBefore(pack.ID)
	fromChans := shape.Bundle.Filter(hw.From)
	bundles := make([]hw.ValueID, shape.Len)
	fromPerChannel := make([][]hw.ValueID, len(fromChans))
	for i := 0; i < shape.Len; i++ {
		to := make([]hw.ValueID, pack.NumOperands())
		for j, arr := range pack.PackToChannels() {
			to[j] = b.ArrayGet(arr, i)
		}
		p := d.Op(b.Pack(shape.Bundle, to))
		bundles[i] = p.PackBundle()
		cl.push(p.ID)
		for j, f := range p.PackFromChannels() {
			fromPerChannel[j] = append(fromPerChannel[j], f)
		}
	}

	for _, id := range d.Users(pack.PackBundle()) {
		get := d.Op(id)
		cl.replace(get.Result(0), bundles[get.Index])
		if err := cl.erase(get); err != nil {
			return err
		}
	}
	for j, r := range pack.PackFromChannels() {
		cl.replace(r, b.ArrayCreate(fromChans[j].Type, fromPerChannel[j]))
	}
	if err := cl.erase(pack); err != nil {
		return err
	}
	cl.stats.Scalarized++
	return nil
}

// scalarizeUnpack splits an arrayed Unpack of an array_create into one
// Unpack per element.
func (cl *cleaner) scalarizeUnpack(unpack *hw.Op) error {
	d := cl.d
	shape, ok := hw.ShapeOf(d.TypeOf(unpack.UnpackBundle()))
	if !ok || !shape.Arrayed {
		return nil
	}
	def := d.DefiningOp(unpack.UnpackBundle())
	if def == hw.NoOp || d.Op(def).Kind != hw.OpArrayCreate {
		return nil
	}
	elems := d.Op(def).Operands()

	b := hw.NewBuilder(d, unpack.Parent)
	b.SetInsertionPointBefore(unpack.ID)
	toChans := shape.Bundle.Filter(hw.To)
	toPerChannel := make([][]hw.ValueID, len(toChans))
	for i, elem := range elems {
		from := make([]hw.ValueID, 0, len(unpack.UnpackFromChannels()))
		for _, arr := range unpack.UnpackFromChannels() {
			from = append(from, b.ArrayGet(arr, i))
		}
		u := d.Op(b.Unpack(elem, from))
		cl.push(u.ID)
		for j, r := range u.UnpackToChannels() {
			toPerChannel[j] = append(toPerChannel[j], r)
		}
	}

	for j, r := range unpack.UnpackToChannels() {
		cl.replace(r, b.ArrayCreate(toChans[j].Type, toPerChannel[j]))
	}
	if err := cl.erase(unpack); err != nil {
		return err
	}
	cl.stats.Scalarized++
	return nil
}

// foldGet rewrites array_get(array_create(xs), i) to xs[i].
func (cl *cleaner) foldGet(get *hw.Op) error {
	def := cl.d.DefiningOp(get.Operand(0))
	if def == hw.NoOp {
		return nil
	}
	create := cl.d.Op(def)
	if create.Kind != hw.OpArrayCreate || get.Index < 0 || get.Index >= create.NumOperands() {
		return nil
	}
	cl.replace(get.Result(0), create.Operand(get.Index))
	cl.stats.ArrayFolds++
	return cl.erase(get)
}

// foldCreate rewrites array_create(array_get(a, 0), ..., array_get(a, N-1))
// to a when a has exactly N elements.
func (cl *cleaner) foldCreate(create *hw.Op) error {
	d := cl.d
	n := create.NumOperands()
	if n == 0 {
		return nil
	}
	src := hw.NoValue
	for i, v := range create.Operands() {
		def := d.DefiningOp(v)
		if def == hw.NoOp {
			return nil
		}
		get := d.Op(def)
		if get.Kind != hw.OpArrayGet || get.Index != i {
			return nil
		}
		if i == 0 {
			src = get.Operand(0)
		} else if get.Operand(0) != src {
			return nil
		}
	}
	if !hw.TypesEqual(d.TypeOf(src), d.TypeOf(create.Result(0))) {
		return nil
	}
	cl.replace(create.Result(0), src)
	cl.stats.ArrayFolds++
	return cl.erase(create)
}
