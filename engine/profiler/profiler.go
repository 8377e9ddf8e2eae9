package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// Profiler tracks frame rate, sample throughput and memory statistics.
// Outputs stats through the common logger at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	lastSamples    uint64
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// SetInterval changes how often statistics are logged. Non-positive values are ignored.
func (p *Profiler) SetInterval(d time.Duration) {
	if d > 0 {
		p.updateInterval = d
	}
}

// Tick should be called once per rendered frame.
// Logs performance statistics when the update interval has elapsed: frames per second,
// accumulated samples and the sample rate, heap usage, allocation rate and GC pauses.
//
// Parameters:
//   - samples: the path tracer's sample counter after this frame
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(samples uint64) bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	// a reset drops the counter below the last reading
	var newSamples uint64
	if samples >= p.lastSamples {
		newSamples = samples - p.lastSamples
	} else {
		newSamples = samples
	}
	var msPerSample float64
	if newSamples > 0 {
		msPerSample = float64(elapsed.Microseconds()) / 1000 / float64(newSamples)
	}

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	common.Logger().Info("profiler",
		"fps", fps,
		"samples", samples,
		"ms_per_sample", msPerSample,
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_pause_us", lastPauseUs,
		"gc_max_pause_us", maxPauseUs,
		"sys_mb", sysMB,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastSamples = samples
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
