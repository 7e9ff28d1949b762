// Command kindling trains a tabular classifier from CSV splits, reports the
// training history, optionally classifies an unlabeled predict split, and
// writes a loss-curve plot.
//
// Example:
//
//	kindling -train train.csv -val val.csv -predict new.csv \
//	  -target species -categorical habitat -numerical "sepal,petal" \
//	  -backbone category_embedding -epochs 40 -plot out/loss.png
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/kindling/tabular"
)

func main() {
	trainPath := flag.String("train", "", "training CSV (required; .xz and gs:// supported)")
	valPath := flag.String("val", "", "validation CSV")
	testPath := flag.String("test", "", "test CSV")
	predictPath := flag.String("predict", "", "unlabeled CSV to classify after training")
	cacheDir := flag.String("cache-dir", "", "cache directory for gs:// downloads")

	target := flag.String("target", "", "label column (required)")
	categorical := flag.String("categorical", "", "comma-separated categorical feature columns")
	numerical := flag.String("numerical", "", "comma-separated numeric feature columns")

	backbone := flag.String("backbone", "mlp", fmt.Sprintf("backbone name (available: %s)",
		strings.Join(tabular.Backbones.Names(), ", ")))
	hidden := flag.String("hidden", "", "comma-separated hidden layer sizes, e.g. '64,32'")
	epochs := flag.Int("epochs", 20, "training epochs")
	batchSize := flag.Int("batch-size", 32, "training batch size")
	learningRate := flag.Float64("learning-rate", 0.05, "SGD learning rate")
	patience := flag.Int("patience", 0, "early-stopping patience in epochs (0 disables)")
	seed := flag.Int64("seed", 1, "random seed for init and shuffling")

	plotPath := flag.String("plot", "", "write a loss-curve PNG to this path")

	klog.InitFlags(nil)
	flag.Parse()

	if *trainPath == "" || *target == "" {
		fmt.Fprintln(os.Stderr, "both -train and -target are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	d, err := tabular.FromCSV(ctx, *trainPath, *valPath, *testPath, *predictPath, tabular.Config{
		Target:      *target,
		Categorical: splitList(*categorical),
		Numerical:   splitList(*numerical),
		BatchSize:   *batchSize,
		CacheDir:    *cacheDir,
	})
	if err != nil {
		klog.Exitf("loading data: %v", err)
	}
	klog.Infof("loaded %d training rows, %d classes: %s",
		d.Train().Len(), d.NumClasses(), strings.Join(d.Labels(), ", "))

	c, err := tabular.NewClassifier(d, tabular.ClassifierConfig{
		Backbone:     *backbone,
		HiddenSizes:  splitInts(*hidden),
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *learningRate,
		Patience:     *patience,
		Seed:         *seed,
	})
	if err != nil {
		klog.Exitf("building classifier: %v", err)
	}

	report, err := c.Fit(ctx)
	if err != nil {
		klog.Exitf("training: %v", err)
	}
	best := report.History[report.Best]
	klog.Infof("trained %d epochs, best epoch %d: train loss %.4f, val loss %.4f",
		len(report.History), best.Epoch, best.TrainLoss, best.ValLoss)

	if *plotPath != "" {
		if err := report.PlotHistory(*plotPath); err != nil {
			klog.Exitf("plotting history: %v", err)
		}
		klog.Infof("loss curve written to %s", *plotPath)
	}

	if *predictPath != "" {
		n := d.Predict().Len()
		for i := 0; i < n; i++ {
			label, probs, err := c.PredictItem(i)
			if err != nil {
				klog.Exitf("predicting row %d: %v", i, err)
			}
			fmt.Printf("%d\t%s\t%.4f\n", i, label, maxProb(probs))
		}
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(s string) []int {
	var out []int
	for _, p := range splitList(s) {
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil || n <= 0 {
			klog.Exitf("invalid hidden layer size %q", p)
		}
		out = append(out, n)
	}
	return out
}

func maxProb(probs []float32) float32 {
	var best float32
	for _, p := range probs {
		if p > best {
			best = p
		}
	}
	return best
}
