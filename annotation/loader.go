package annotation

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/lewtec/mosaico/internal/domain"
)

var patchFilenameRe = regexp.MustCompile(`^patch-(\d+)-(\d+)-(\d+)-(\d+)-#(.+)#\.[^.]+$`)

var pixelChannels = []string{"R", "G", "B", "A"}

// LoadRequest points a Loader at image files on disk
type LoadRequest struct {
	PatchPaths   string
	ParentPaths  string
	MetadataPath string
	Delimiter    string
}

// Loader builds an item table and its parents from some source
type Loader interface {
	Load(ctx context.Context, req LoadRequest) (*Table, []domain.Parent, error)
}

// DirectoryLoader reads patches whose file names carry their pixel bounds and
// parent, as written by the patchifier: patch-{minx}-{miny}-{maxx}-{maxy}-#{parent}#.{ext}
type DirectoryLoader struct {
	// Jobs is the number of concurrent image readers
	Jobs   int
	Images ImageOpener
}

type patchFile struct {
	key    string
	path   string
	parent string
	bounds domain.Bounds

	shape *domain.Shape
	stats map[string]float64
}

// Load globs the patch and parent files, probes every patch image and joins
// the parent metadata table when one is given
func (l *DirectoryLoader) Load(ctx context.Context, req LoadRequest) (*Table, []domain.Parent, error) {
	if req.PatchPaths == "" {
		return nil, nil, &domain.ConfigurationError{Option: "patch_paths", Reason: "no patch files to load"}
	}
	images := l.Images
	if images == nil {
		images = FileImageOpener{}
	}
	log.Printf("Loader: loading patches from %s", req.PatchPaths)
	paths, err := globFiles(req.PatchPaths)
	if err != nil {
		return nil, nil, err
	}
	patches := make([]*patchFile, 0, len(paths))
	for _, path := range paths {
		pf, err := parsePatchFilename(path)
		if err != nil {
			return nil, nil, err
		}
		patches = append(patches, pf)
	}

	queue := make(chan *patchFile, 10)
	var wg sync.WaitGroup
	worker := func(queue chan *patchFile) {
		defer wg.Done()
		for pf := range queue {
			if err := pf.probe(images); err != nil {
				log.Printf("warning: Loader: while reading '%s': %s", pf.path, err)
			}
		}
	}
	jobs := max(l.Jobs, 1)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go worker(queue)
	}
	var cancelled error
	for _, pf := range patches {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		queue <- pf
	}
	close(queue)
	wg.Wait()
	if cancelled != nil {
		return nil, nil, cancelled
	}

	parents, err := l.loadParents(req)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Loader: %d patches from %d parents", len(patches), len(parents))
	return patchTable(patches), parents, nil
}

func (l *DirectoryLoader) loadParents(req LoadRequest) ([]domain.Parent, error) {
	var parents []domain.Parent
	if req.ParentPaths != "" {
		log.Printf("Loader: loading parents from %s", req.ParentPaths)
		paths, err := globFiles(req.ParentPaths)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			parents = append(parents, domain.Parent{
				ID:    filepath.Base(path),
				Extra: map[string]string{"image_path": path},
			})
		}
	}
	if req.MetadataPath == "" {
		return parents, nil
	}
	metadata, err := ReadTableFile(req.MetadataPath, req.Delimiter)
	if err != nil {
		return nil, err
	}
	log.Printf("Loader: adding metadata from %s", req.MetadataPath)
	return joinMetadata(parents, metadata), nil
}

// joinMetadata copies metadata rows onto the parents with the same name.
// Without parent files the metadata rows are the parents.
func joinMetadata(parents []domain.Parent, metadata *Table) []domain.Parent {
	byName := make(map[string]TableRow, len(metadata.Rows))
	for _, row := range metadata.Rows {
		byName[filepath.Base(row.Key)] = row
	}
	if len(parents) == 0 {
		for _, row := range metadata.Rows {
			parents = append(parents, domain.Parent{ID: filepath.Base(row.Key), Extra: map[string]string{}})
		}
	}
	for i := range parents {
		row, ok := byName[parents[i].ID]
		if !ok {
			continue
		}
		if parents[i].Extra == nil {
			parents[i].Extra = map[string]string{}
		}
		for _, col := range metadata.Columns {
			if col == columnURL {
				parents[i].URL = row.Cells[col]
				continue
			}
			parents[i].Extra[col] = row.Cells[col]
		}
	}
	return parents
}

// ParentsFromTable reads a parent table: the row key is the parent id and an
// optional url column links to the source of the map sheet
func ParentsFromTable(t *Table) []domain.Parent {
	parents := make([]domain.Parent, 0, len(t.Rows))
	for _, row := range t.Rows {
		p := domain.Parent{ID: row.Key, Extra: map[string]string{}}
		for _, col := range t.Columns {
			if col == columnURL {
				p.URL = row.Cells[col]
				continue
			}
			p.Extra[col] = row.Cells[col]
		}
		parents = append(parents, p)
	}
	return parents
}

// globFiles expands a glob pattern, or lists a directory, in sorted order
func globFiles(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "*")
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("while expanding '%s': %w", pattern, err)
	}
	var ret []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(match)
		if err != nil {
			return nil, err
		}
		ret = append(ret, abs)
	}
	if len(ret) == 0 {
		return nil, &domain.InputNotFoundError{Path: pattern}
	}
	sort.Strings(ret)
	return ret, nil
}

func parsePatchFilename(path string) (*patchFile, error) {
	name := filepath.Base(path)
	m := patchFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return nil, &domain.SchemaError{Column: "image_path", Reason: fmt.Sprintf("%q is not named patch-{minx}-{miny}-{maxx}-{maxy}-#{parent}#.{ext}", name)}
	}
	var coords [4]int
	for i := range coords {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return nil, &domain.SchemaError{Column: "image_path", Reason: fmt.Sprintf("%q: %s", name, err)}
		}
		coords[i] = v
	}
	b := domain.Bounds{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}
	if !b.Valid() {
		return nil, &domain.SchemaError{Column: "image_path", Reason: fmt.Sprintf("%q has invalid bounds", name)}
	}
	return &patchFile{key: name, path: path, parent: m[5], bounds: b}, nil
}

// probe records the image shape and the per-channel pixel statistics,
// with values scaled to [0, 1]
func (pf *patchFile) probe(images ImageOpener) error {
	img, err := images.Decode(pf.path)
	if err != nil {
		return err
	}
	b := img.Bounds()
	channels := channelCount(img)
	pf.shape = &domain.Shape{Height: b.Dy(), Width: b.Dx(), Channels: channels}

	n := b.Dx() * b.Dy()
	values := make([][]float64, 4)
	for c := range values {
		values[c] = make([]float64, 0, n)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			values[0] = append(values[0], float64(px.R)/255)
			values[1] = append(values[1], float64(px.G)/255)
			values[2] = append(values[2], float64(px.B)/255)
			values[3] = append(values[3], float64(px.A)/255)
		}
	}
	used := 3
	if channels == 4 {
		used = 4
	}
	pf.stats = map[string]float64{}
	if n == 0 {
		return nil
	}
	for c := 0; c < used; c++ {
		pf.stats["mean_pixel_"+pixelChannels[c]] = stat.Mean(values[c], nil)
		pf.stats["std_pixel_"+pixelChannels[c]] = math.Sqrt(stat.PopVariance(values[c], nil))
	}
	return nil
}

// channelCount reports 1 for grey images, 4 when an alpha channel is in
// use and 3 otherwise. Decoders return RGBA for plain RGB files, so an
// opaque image counts as RGB.
func channelCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
			return 3
		}
		return 4
	default:
		return 3
	}
}

func patchTable(patches []*patchFile) *Table {
	t := &Table{
		Index:   columnImageID,
		Columns: []string{"image_path", columnParentID, columnPixelBounds, columnShape},
	}
	for _, prefix := range []string{"mean_pixel_", "std_pixel_"} {
		for _, c := range pixelChannels {
			t.Columns = append(t.Columns, prefix+c)
		}
	}
	for _, pf := range patches {
		row := TableRow{Key: pf.key, Cells: map[string]string{
			"image_path":      pf.path,
			columnParentID:    pf.parent,
			columnPixelBounds: formatIntTuple(pf.bounds.MinX, pf.bounds.MinY, pf.bounds.MaxX, pf.bounds.MaxY),
		}}
		if pf.shape != nil {
			row.Cells[columnShape] = formatIntTuple(pf.shape.Height, pf.shape.Width, pf.shape.Channels)
		}
		for name, v := range pf.stats {
			row.Cells[name] = formatNumber(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// OpenSession builds the session described by cfg: from the patch and parent
// tables when patch_df is set, otherwise by loading patch_paths with loader.
func OpenSession(ctx context.Context, cfg *Config, loader Loader, opts Options) (*Session, error) {
	var (
		items   *Table
		parents []domain.Parent
		err     error
	)
	switch {
	case cfg.PatchTable != "":
		items, err = ReadTableFile(cfg.PatchTable, cfg.Delimiter)
		if err != nil {
			return nil, err
		}
		if cfg.ParentTable != "" {
			parentTable, err := ReadTableFile(cfg.ParentTable, cfg.Delimiter)
			if err != nil {
				return nil, err
			}
			parents = ParentsFromTable(parentTable)
		}
	case cfg.PatchPaths != "":
		if loader == nil {
			loader = &DirectoryLoader{Images: opts.Images}
		}
		items, parents, err = loader.Load(ctx, LoadRequest{
			PatchPaths:   cfg.PatchPaths,
			ParentPaths:  cfg.ParentPaths,
			MetadataPath: cfg.MetadataPath,
			Delimiter:    cfg.Delimiter,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, &domain.ConfigurationError{Option: "patch_df", Reason: "either patch_df or patch_paths must be set"}
	}
	return NewSession(cfg, items, parents, opts)
}
