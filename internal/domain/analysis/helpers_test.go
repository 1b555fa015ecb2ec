package analysis

import "github.com/bryanwahyu/judgeproxy/internal/domain/judges"

func judgeWith(repo, doc bool) judges.Judge {
	return judges.Judge{ID: "t", Kind: judges.KindDify, RequireRepository: repo, RequireDocument: doc}
}
