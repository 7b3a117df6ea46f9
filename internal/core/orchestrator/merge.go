package orchestrator

import (
	"context"
	"sync"

	"github.com/dep2p/go-bootnode/pkg/types"
)

// Source 具名事件源
type Source struct {
	Name   string
	Events <-chan types.Event
}

// merge 把多个事件源合并为一路
//
// 先就绪者先出；全部事件源关闭或 ctx 取消后，输出通道关闭。
func merge(ctx context.Context, sources []Source) <-chan types.Event {
	out := make(chan types.Event)

	var wg sync.WaitGroup
	for _, src := range sources {
		if src.Events == nil {
			continue
		}
		wg.Add(1)
		go func(in <-chan types.Event) {
			defer wg.Done()
			for {
				select {
				case ev, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(src.Events)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
