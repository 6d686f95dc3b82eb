package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolstock/stockroom/internal/apperr"
	"github.com/schoolstock/stockroom/internal/model"
)

func sampleReport() *model.StockTakeReport {
	return &model.StockTakeReport{
		ID:        uuid.New(),
		CreatedAt: time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC),
		Lines: []model.ReportLine{
			{ItemName: "Beakers <250ml>", PreviousQty: 10, CountedQty: 12, Difference: 2},
			{ItemName: "Pipettes", PreviousQty: 8, CountedQty: 5, Difference: -3},
		},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "<h1>Stock Take Report</h1>")
	assert.Contains(t, out, "Date: 2026-03-09 14:30")
	assert.Contains(t, out, "Total items changed: 2")
	assert.Contains(t, out, "Beakers &lt;250ml&gt;")
	assert.Contains(t, out, `<td class="num">+2</td>`)
	assert.Contains(t, out, `<td class="num">-3</td>`)
	assert.NotContains(t, out, "&#43;")
	assert.Less(t, strings.Index(out, "Beakers"), strings.Index(out, "Pipettes"))
}

func TestKey(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, "stock-take-20260309-143000-"+r.ID.String()+".html", Key(r))
}

func TestLocalArchive(t *testing.T) {
	ctx := context.Background()
	a := &LocalArchive{Dir: t.TempDir() + "/reports"}

	require.NoError(t, a.Put(ctx, "r.html", []byte("<p>hi</p>")))
	got, err := a.Get(ctx, "r.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(got))

	_, err = a.Get(ctx, "missing.html")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	for _, key := range []string{"", "../escape.html", "sub/r.html", ".hidden"} {
		err := a.Put(ctx, key, nil)
		assert.ErrorIs(t, err, apperr.ErrValidation, "key %q", key)
	}
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Archive(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	a := &S3Archive{Client: fake, Bucket: "reports"}

	require.NoError(t, a.Put(ctx, "r.html", []byte("doc")))
	assert.Equal(t, []byte("doc"), fake.objects["reports/r.html"])
	assert.Equal(t, ContentType, fake.types["r.html"])

	got, err := a.Get(ctx, "r.html")
	require.NoError(t, err)
	assert.Equal(t, "doc", string(got))

	_, err = a.Get(ctx, "other.html")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
