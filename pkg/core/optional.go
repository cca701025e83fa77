package core

// Optional 显式的可空值，替代哨兵值
type Optional[T any] struct {
	value T
	set   bool
}

// Some 构造有值的 Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None 构造空 Optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get 返回值以及是否存在
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet 是否有值
func (o Optional[T]) IsSet() bool {
	return o.set
}
