package plugin

import (
	"path/filepath"
	"reflect"

	"forecast-miner/internal/common"
	"forecast-miner/internal/dataset"

	"github.com/traefik/yaegi/interp"
)

// Artifacts are the files selected next to a module. A module reaches them by
// importing "miner/artifacts":
//
//	import "miner/artifacts"
//
//	func Predict(ts time.Time) (float64, error) {
//		return artifacts.Data.Last(ts, "close")
//	}
type Artifacts struct {
	BaseDir   string
	ModelPath string
	DataPath  string
	Data      *dataset.Table
}

// Resolve joins a relative name onto BaseDir. Absolute names are returned unchanged.
func (a *Artifacts) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.BaseDir, name)
}

func (a *Artifacts) exports() interp.Exports {
	// copies so interpreted code cannot reach back into the host's struct
	baseDir, modelPath, dataPath, data := a.BaseDir, a.ModelPath, a.DataPath, a.Data
	name := filepath.Base(common.ArtifactsImportPath)

	return interp.Exports{
		common.ArtifactsImportPath + "/" + name: {
			"BaseDir":   reflect.ValueOf(&baseDir).Elem(),
			"ModelPath": reflect.ValueOf(&modelPath).Elem(),
			"DataPath":  reflect.ValueOf(&dataPath).Elem(),
			"Data":      reflect.ValueOf(&data).Elem(),
			"Resolve":   reflect.ValueOf(a.Resolve),

			"Table": reflect.ValueOf((*dataset.Table)(nil)),

			"ErrOutOfCoverage":       reflect.ValueOf(&dataset.ErrOutOfCoverage).Elem(),
			"ErrInsufficientHistory": reflect.ValueOf(&dataset.ErrInsufficientHistory).Elem(),
		},
	}
}
