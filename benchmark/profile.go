package benchmark

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/fogfactory/stagepipe"
	"github.com/samber/lo"
)

// Profile generates a profile file. It will be outputted as stagepipe_{date}_in{items}_{workers}.prof.
//
// - items Number of items fed to the pipeline.
// - workers Worker count of each stage. Its length is also the number of stages.
//
// Each stage sleeps a millisecond per item. use pprof to read the file (go install github.com/google/pprof@latest).
func Profile(items int, workers ...int) {
	// Profile file
	f, err := os.Create(fmt.Sprintf("stagepipe_%s_in%d_%s.prof",
		strings.ReplaceAll(time.Now().Truncate(time.Second).Format(time.DateTime), " ", "-"),
		items,
		strings.Join(lo.Map(workers, func(item, _ int) string { return fmt.Sprint(item) }), "-")))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer f.Close()

	// Init pipeline
	dumbProc := stagepipe.AsTransform(func(i int) int { time.Sleep(time.Millisecond); return i })
	p, err := stagepipe.New("profile", lo.Map(workers, func(n, i int) stagepipe.StageSpec[int] {
		return stagepipe.StageSpec[int]{Name: fmt.Sprintf("stage-%d", i), Workers: n, QueueCapacity: n, Transform: dumbProc}
	}))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// linear processing equivalent
	totalCall := items * len(workers)
	fmt.Println("totalCalls: ", totalCall, ", minimal seq duration:", time.Duration(totalCall)*time.Millisecond)

	// Start profiling
	func() {
		_ = pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()

		// Run pipeline
		start := time.Now()
		report, err := p.Run(lo.SliceToChannel(0, lo.Range(items)))
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("(par: %s, processed: %d)\n", time.Since(start), report.Processed)
	}()

	val := 0
	start := time.Now()
	for i := 0; i < totalCall; i++ {
		val, _ = dumbProc(val)
	}
	fmt.Printf("(seq: %s)\n", time.Since(start))
	fmt.Printf("profile:%s\n", f.Name())

	// Call pprof on a file
	// pprof -http=:8080 $file
}
