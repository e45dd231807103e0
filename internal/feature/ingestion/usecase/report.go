package usecase

import (
	"fmt"
	"strings"

	"stonk_db/internal/feature/ingestion/domain/entity"
)

// Failure は取り込み中に発生した1件のエラーです。
// Window が nil の場合は実行全体または銘柄単位のエラーです。
type Failure struct {
	Symbol string
	Index  int // 1始まりのウィンドウ番号（Window が nil の場合は0）
	Window *entity.TimeRange
	Err    error
}

func (f Failure) String() string {
	switch {
	case f.Symbol == "":
		return fmt.Sprintf("run: %v", f.Err)
	case f.Window == nil:
		return fmt.Sprintf("%s: %v", f.Symbol, f.Err)
	default:
		return fmt.Sprintf("%s window %d %s: %v", f.Symbol, f.Index, f.Window, f.Err)
	}
}

// Report は1回の取り込み実行の結果を集約します。
// エラーが1件でもあれば実行全体は失敗として扱われますが、成功したウィンドウのデータはコミット済みです。
type Report struct {
	RunID    string
	Assets   int
	Windows  int
	Inserted int64
	Failures []Failure
}

// Success はエラーレポートが空の場合に true を返します。
func (r *Report) Success() bool {
	return len(r.Failures) == 0
}

// ErrorReport はすべてのエラーを1つの文字列に連結します。
func (r *Report) ErrorReport() string {
	lines := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		lines = append(lines, f.String())
	}
	return strings.Join(lines, "\n")
}

// Result は取り込みトリガーの呼び出し元に返す結果です。
type Result struct {
	Success bool
	Message string
}

// Result はレポートを呼び出し元向けの結果に変換します。
func (r *Report) Result() Result {
	if !r.Success() {
		return Result{Success: false, Message: r.ErrorReport()}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("run %s: %d new observations across %d assets (%d windows)",
			r.RunID, r.Inserted, r.Assets, r.Windows),
	}
}

func (r *Report) fail(f Failure) {
	r.Failures = append(r.Failures, f)
}
