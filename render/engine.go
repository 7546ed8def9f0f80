package render

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/config"
	"VideoPipeline-server/models"

	"golang.org/x/sync/errgroup"
)

// Degradation names a prerequisite the render went ahead without.
type Degradation string

const (
	MissingImage     Degradation = "missing_image"
	MissingVoiceover Degradation = "missing_voiceover"
	MissingMusic     Degradation = "missing_music"
)

// Notice ties a degradation to a scene; SceneIndex is -1 for project level.
type Notice struct {
	Kind       Degradation
	SceneIndex int
}

func (n Notice) String() string {
	if n.SceneIndex < 0 {
		return string(n.Kind)
	}
	return fmt.Sprintf("%s (scene %d)", n.Kind, n.SceneIndex)
}

type Options struct {
	ExportFCPXML bool
	ExportEDL    bool
}

// Output lists the local files a render produced inside its work dir.
type Output struct {
	VideoPath  string
	FCPXMLPath string
	EDLPath    string
	TotalMs    int
	Notices    []Notice
}

// Engine turns a loaded project graph into an MP4 and optional exports.
type Engine struct {
	transcoder  Transcoder
	compositor  *Compositor
	fetcher     Fetcher
	fps         int
	musicDuckDB float64
	fcpxmlDB    float64
	parallelism int
}

func NewEngine(cfg config.RenderConfig, transcoder Transcoder, compositor *Compositor, fetcher Fetcher) *Engine {
	parallelism := cfg.ClipParallelism
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{
		transcoder:  transcoder,
		compositor:  compositor,
		fetcher:     fetcher,
		fps:         cfg.FPS,
		musicDuckDB: cfg.MusicDuckDB,
		fcpxmlDB:    cfg.FCPXMLMusicDB,
		parallelism: parallelism,
	}
}

// Degradations reports which prerequisites the project is missing.
func Degradations(project *models.Project) []Notice {
	var notices []Notice
	for _, slot := range BuildTimeline(project.Scenes).Slots {
		if slot.Scene.ImageAsset == nil {
			notices = append(notices, Notice{Kind: MissingImage, SceneIndex: slot.Scene.Index})
		}
		if strings.TrimSpace(slot.Scene.Overlay()) != "" && slot.Scene.VoSegment == nil {
			notices = append(notices, Notice{Kind: MissingVoiceover, SceneIndex: slot.Scene.Index})
		}
	}
	if project.MusicAsset.IsMock() {
		notices = append(notices, Notice{Kind: MissingMusic, SceneIndex: -1})
	}
	return notices
}

// Render writes every output into workDir. logf receives progress lines.
func (e *Engine) Render(ctx context.Context, project *models.Project, workDir string, opts Options, logf func(string)) (*Output, error) {
	if logf == nil {
		logf = func(string) {}
	}
	if len(project.Scenes) == 0 {
		return nil, apperr.Wrap(apperr.ErrEmptyInput, "editor", "render", "project "+project.ID+" has no scenes", nil)
	}
	out := &Output{Notices: Degradations(project)}
	for _, n := range out.Notices {
		logf("degraded: " + n.String())
	}

	width, height := project.AspectRatio.Dimensions()
	video := BuildTimeline(project.Scenes)

	clips, err := e.encodeClips(ctx, video, width, height, workDir)
	if err != nil {
		return nil, err
	}
	logf(fmt.Sprintf("encoded %d scene clips", len(clips)))

	silent := filepath.Join(workDir, "silent.mp4")
	if err := e.transcoder.Concat(ctx, clips, filepath.Join(workDir, "clips.txt"), silent); err != nil {
		return nil, err
	}
	logf("concatenated clips")

	// The audio pass times itself from its own timeline.
	audio := BuildTimeline(project.Scenes)
	req := MuxRequest{VideoPath: silent, TotalMs: audio.TotalMs, OutPath: filepath.Join(workDir, "final.mp4")}
	if m := project.MusicAsset; !m.IsMock() {
		path := filepath.Join(workDir, "music_"+m.ID)
		if err := e.fetcher.Fetch(ctx, m.URL, path); err != nil {
			return nil, err
		}
		req.Music = &MusicInput{Path: path, GainDB: e.musicDuckDB}
	}
	for _, slot := range audio.Slots {
		vo := slot.Scene.VoSegment
		if vo == nil || models.IsMockURL(vo.AudioURL) {
			continue
		}
		path := filepath.Join(workDir, "vo_"+vo.ID)
		if err := e.fetcher.Fetch(ctx, vo.AudioURL, path); err != nil {
			return nil, err
		}
		req.Voiceovers = append(req.Voiceovers, VoiceInput{Path: path, DelayMs: slot.StartMs})
	}

	lastLogged := -1
	err = e.transcoder.Mux(ctx, req, func(pct float64) {
		whole := int(math.Floor(pct))
		if whole >= lastLogged+5 || (whole == 100 && lastLogged != 100) {
			lastLogged = whole
			logf(fmt.Sprintf("encode progress %d%%", whole))
		}
	})
	if err != nil {
		return nil, err
	}
	out.VideoPath = req.OutPath
	out.TotalMs = video.TotalMs

	if opts.ExportFCPXML {
		doc, err := BuildFCPXML(project, e.fcpxmlDB)
		if err != nil {
			return nil, err
		}
		out.FCPXMLPath = filepath.Join(workDir, "timeline.fcpxml")
		if err := writeFile(out.FCPXMLPath, doc); err != nil {
			return nil, err
		}
		logf("built fcpxml export")
	}
	if opts.ExportEDL {
		out.EDLPath = filepath.Join(workDir, "timeline.edl")
		if err := writeFile(out.EDLPath, BuildEDL(project, e.fps)); err != nil {
			return nil, err
		}
		logf("built edl export")
	}
	return out, nil
}

// encodeClips builds every scene clip, in parallel, and returns the paths in
// timeline order.
func (e *Engine) encodeClips(ctx context.Context, tl Timeline, width, height int, workDir string) ([]string, error) {
	clips := make([]string, len(tl.Slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, slot := range tl.Slots {
		g.Go(func() error {
			still := filepath.Join(workDir, fmt.Sprintf("scene_%03d.png", i))
			if err := e.compositor.SceneStill(gctx, slot.Scene, width, height, still); err != nil {
				return fmt.Errorf("scene %d still: %w", slot.Scene.Index, err)
			}
			clip := filepath.Join(workDir, fmt.Sprintf("clip_%03d.mp4", i))
			if err := e.transcoder.EncodeStill(gctx, StillClip{ImagePath: still, DurationMs: slot.DurationMs, OutPath: clip}); err != nil {
				return err
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}
