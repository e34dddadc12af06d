/**
 * 双端队列, 用于保存求解迭代过程中的残差历史.
 * 容量固定, 满了之后丢弃最旧的元素.
 */

package deque

type Deque interface {
	// 队列的长度
	Size() int

	// 在队列结尾增加一个元素, 满了则丢弃头部
	Push(v float64)

	// 正向遍历
	Traverse(f func(i int, v float64))
}
