package deque

// ArrDeque is a fixed capacity ring buffer.
type ArrDeque struct {
	arr   []float64
	start int // 头部下标
	size  int
}

// 工厂方法
func NewArrDeque(capacity int) *ArrDeque {
	if capacity < 1 {
		capacity = 1
	}
	return &ArrDeque{arr: make([]float64, capacity)}
}

func (ad *ArrDeque) Size() int {
	return ad.size
}

func (ad *ArrDeque) index(i int) int {
	return (ad.start + i) % len(ad.arr)
}

// Push appends v, dropping the oldest element when full.
func (ad *ArrDeque) Push(v float64) {
	if ad.size == len(ad.arr) {
		ad.start = ad.index(1)
		ad.size--
	}
	ad.arr[ad.index(ad.size)] = v
	ad.size++
}

func (ad *ArrDeque) Traverse(f func(i int, v float64)) {
	for i := 0; i < ad.size; i++ {
		f(i, ad.arr[ad.index(i)])
	}
}

// 复制为切片, 头部在前
func (ad *ArrDeque) Slice() []float64 {
	out := make([]float64, 0, ad.size)
	ad.Traverse(func(_ int, v float64) {
		out = append(out, v)
	})
	return out
}
