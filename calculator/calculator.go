package calculator

import "mkvert/model"

// calculator 的接口定义

type Calculator interface {
	// 由目标半层高度求 A、B 系数
	Solve(altitudes []float64) (*Result, error)

	// 给定地面气压计算廓线
	Evaluate(levels *model.Levels, ps float64) (*model.Profile, error)

	// 全层气压规则
	Rule() FullLevelRule
}

var _ Calculator = (*Solver)(nil)
