package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec2 二维向量
type Vec2 = mgl64.Vec2

// epsilon 以下的长度视为零向量
const epsilon = 1e-9

// Normalized 返回单位向量，零向量返回零向量（mgl64 会得到 NaN）
func Normalized(v Vec2) Vec2 {
	l := v.Len()
	if l < epsilon {
		return Vec2{}
	}
	return v.Mul(1 / l)
}

// Finite 两个分量都不是 NaN 或无穷大
func Finite(v Vec2) bool {
	return finite(v[0]) && finite(v[1])
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// LerpVec 线性插值，t=0 返回 a，t=1 返回 b
func LerpVec(a, b Vec2, t float64) Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}

// Lerp 标量线性插值
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Sign 与游戏引擎一致：0 视为正号
func Sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
