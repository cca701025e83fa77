package tick

// Number 模拟步编号，单调递增，溢出后回绕到 0
type Number uint32

// Newer 判断 a 是否比 b 新（序号算术，容忍回绕）
// 两者相差超过半个 uint32 区间时视为已回绕
func Newer(a, b Number) bool {
	return a != b && int32(a-b) > 0
}

// NotNewer 判断 a 是否不比 b 新（a == b 或 a 更旧）
func NotNewer(a, b Number) bool {
	return !Newer(a, b)
}
