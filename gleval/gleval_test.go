package gleval_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/glpbr/glbuild"
	"github.com/soypat/glpbr/gleval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateArithmetic(t *testing.T) {
	ev := gleval.NewEvaluator(nil)
	var frag gleval.Fragment
	v := glbuild.Vec3(1, -2, 3)
	for _, test := range []struct {
		n    *glbuild.Node
		want []float32
	}{
		{n: glbuild.Add(v, glbuild.Float(1)), want: []float32{2, -1, 4}},
		{n: glbuild.Step(glbuild.Float(0), v), want: []float32{1, 0, 1}},
		{n: glbuild.Step(glbuild.Float(1), glbuild.Float(1)), want: []float32{1}},
		{n: glbuild.Mix(glbuild.Float(2), glbuild.Float(4), glbuild.Float(0.25)), want: []float32{2.5}},
		{n: glbuild.Clamp(v, glbuild.Float(-1), glbuild.Float(2)), want: []float32{1, -1, 2}},
		{n: glbuild.Mod(glbuild.Float(-0.25), glbuild.Float(1)), want: []float32{0.75}},
		{n: glbuild.Floor(glbuild.Float(-0.5)), want: []float32{-1}},
		{n: glbuild.Abs(v), want: []float32{1, 2, 3}},
		{n: glbuild.Pow(glbuild.Float(2), glbuild.Float(3)), want: []float32{8}},
		{n: glbuild.Dot(v, v), want: []float32{14}},
		{n: glbuild.Cross(glbuild.Vec3(1, 0, 0), glbuild.Vec3(0, 1, 0)), want: []float32{0, 0, 1}},
		{n: glbuild.Reflect(glbuild.Vec3(1, -1, 0), glbuild.Vec3(0, 1, 0)), want: []float32{1, 1, 0}},
		{n: glbuild.Normalize(glbuild.Vec2(3, 4)), want: []float32{0.6, 0.8}},
		{n: glbuild.Pack(glbuild.Vec2(1, 2), v.Z(), glbuild.Float(4)), want: []float32{1, 2, 3, 4}},
		{n: glbuild.Max(v, glbuild.Float(0)), want: []float32{1, 0, 3}},
	} {
		got, err := ev.Evaluate(test.n, &frag)
		require.NoError(t, err)
		assert.InDeltaSlice(t, test.want, got.Lanes(), 1e-6, test.n.String())
	}
}

func TestEvaluateMixEndpoints(t *testing.T) {
	ev := gleval.NewEvaluator(nil)
	inf := glbuild.Div(glbuild.Float(1), glbuild.Float(0))
	got, err := ev.Evaluate(glbuild.Mix(glbuild.Float(3), inf, glbuild.Float(0)), &gleval.Fragment{})
	require.NoError(t, err)
	assert.Equal(t, float32(3), got.Float())
	got, err = ev.Evaluate(glbuild.Mix(inf, glbuild.Float(5), glbuild.Float(1)), &gleval.Fragment{})
	require.NoError(t, err)
	assert.Equal(t, float32(5), got.Float())
}

func TestEvaluateTransforms(t *testing.T) {
	var b gleval.Bindings
	// Column major translation by (1,2,3).
	translate := gleval.Identity4()
	translate[12], translate[13], translate[14] = 1, 2, 3
	require.NoError(t, b.SetTransform(glbuild.BuiltinModelView, translate))
	require.Error(t, b.SetTransform(glbuild.BuiltinNormal, translate))
	ev := gleval.NewEvaluator(&b)

	var frag gleval.Fragment
	frag.SetAttribute(glbuild.AttrPosition, 1, 1, 1)
	mv := glbuild.VertexTransform(glbuild.BuiltinModelView)
	pos := glbuild.Pack(glbuild.VertexAttribute(glbuild.AttrPosition), glbuild.Float(1))
	got, err := ev.Evaluate(glbuild.MulMatVec(mv, pos), &frag)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4, 1}, got.Lanes())

	// Row vector product applies the transpose.
	got, err = ev.Evaluate(glbuild.MulVecMat(glbuild.Vec4(0, 0, 0, 1), mv), &frag)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1}, got.Lanes())
	got, err = ev.Evaluate(glbuild.MulVecMat(glbuild.Vec4(1, 0, 0, 0), mv), &frag)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 1}, got.Lanes())

	_, err = ev.Evaluate(glbuild.VertexTransform(glbuild.BuiltinView), &frag)
	assert.Error(t, err, "unset uniform")
}

func TestEvaluateDerivatives(t *testing.T) {
	ev := gleval.NewEvaluator(nil)
	uv := glbuild.VertexAttribute(glbuild.AttrTexCoords)
	sq := glbuild.Mul(uv, uv)
	var frag, right, up gleval.Fragment
	frag.SetAttribute(glbuild.AttrTexCoords, 1, 1)
	right.SetAttribute(glbuild.AttrTexCoords, 2, 1)
	up.SetAttribute(glbuild.AttrTexCoords, 1, 3)
	frag.DX, frag.DY = &right, &up

	got, err := ev.Evaluate(glbuild.DFdx(sq), &frag)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, got.Lanes())
	got, err = ev.Evaluate(glbuild.DFdy(sq), &frag)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 8}, got.Lanes())
	got, err = ev.Evaluate(glbuild.DFdy(sq), &right)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, got.Lanes(), "no neighbour")
}

func TestEvaluateTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	var b gleval.Bindings
	ev := gleval.NewEvaluator(&b)
	sample := glbuild.Sample(glbuild.NewTexture("tex"), glbuild.VertexAttribute(glbuild.AttrTexCoords))
	var frag gleval.Fragment
	frag.SetAttribute(glbuild.AttrTexCoords, 0.75, 0.25)
	_, err := ev.Evaluate(sample, &frag)
	require.Error(t, err, "unbound texture")

	b.SetTexture("tex", gleval.NewImageSampler(img, gleval.FilterNearest))
	got, err := ev.Evaluate(sample, &frag)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 1}, got.Lanes())

	b.SetTexture("tex", gleval.NewImageSampler(img, gleval.FilterLinear))
	frag.SetAttribute(glbuild.AttrTexCoords, 0.5, 0.5)
	got, err = ev.Evaluate(sample, &frag)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 1}, got.Lanes(), 1e-6)

	// Clamp to edge.
	frag.SetAttribute(glbuild.AttrTexCoords, -3, 0)
	got, err = ev.Evaluate(sample, &frag)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1}, got.Lanes(), 1e-6)
}

func TestEvaluateMemoization(t *testing.T) {
	ev := gleval.NewEvaluator(nil)
	n := glbuild.Float(2)
	for i := 0; i < 8; i++ {
		n = glbuild.Add(n, n) // Exponential tree, linear DAG.
	}
	got, err := ev.Evaluate(n, &gleval.Fragment{})
	require.NoError(t, err)
	assert.Equal(t, float32(512), got.Float())
	assert.Equal(t, 9, glbuild.CountNodes(n))
	assert.Equal(t, uint64(8), ev.CacheHits())
}

func TestEvaluateFragments(t *testing.T) {
	ev := gleval.NewEvaluator(nil)
	root := glbuild.Length(glbuild.VertexAttribute(glbuild.AttrNormal))
	frags := make([]gleval.Fragment, 3)
	for i := range frags {
		frags[i].SetAttribute(glbuild.AttrNormal, float32(i), 0, 0)
	}
	dst := make([]gleval.Value, len(frags))
	require.NoError(t, ev.EvaluateFragments(root, frags, dst))
	for i, v := range dst {
		assert.Equal(t, float32(i), v.Float())
	}
	assert.Error(t, ev.EvaluateFragments(root, frags, dst[:1]))
	assert.False(t, math32.IsNaN(dst[0].Float()))
}

func TestBatcher(t *testing.T) {
	var b gleval.Bindings
	require.NoError(t, b.SetTransform(glbuild.BuiltinModelView, gleval.Identity4()))
	mv := glbuild.VertexTransform(glbuild.BuiltinModelView)
	pos := glbuild.Pack(glbuild.VertexAttribute(glbuild.AttrPosition), glbuild.Float(1))
	root := glbuild.MulMatVec(mv, pos).X()
	frags := make([]gleval.Fragment, 1000)
	for i := range frags {
		frags[i].SetAttribute(glbuild.AttrPosition, float32(i), 0, 0)
	}
	dst := make([]gleval.Value, len(frags))

	var batcher gleval.Batcher
	assert.Error(t, batcher.Evaluate(root, frags, dst), "unconfigured")
	assert.Error(t, batcher.Configure(nil, gleval.BatcherConfig{}))
	require.NoError(t, batcher.Configure(&b, gleval.BatcherConfig{Workers: 4, MinBatch: 100}))
	require.NoError(t, batcher.Evaluate(root, frags, dst))
	for i, v := range dst {
		assert.Equal(t, float32(i), v.Float())
	}
	assert.NotZero(t, batcher.Evaluations())
	assert.Error(t, batcher.Evaluate(root, frags, dst[:10]))

	// Errors of any worker are returned.
	require.NoError(t, batcher.Configure(new(gleval.Bindings), gleval.BatcherConfig{Workers: 4, MinBatch: 100}))
	assert.Error(t, batcher.Evaluate(root, frags, dst))
}
