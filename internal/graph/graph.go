// Package graph - минимальный драйвер графа задач: именованные узлы,
// статические и условные рёбра, поддержка циклов. Узлы одного графа
// исполняются строго последовательно над общим типизированным состоянием;
// параллельное ветвление (fan-out воркеров) живёт уровнем выше, в
// оркестраторе, вместе с редьюсерами слияния.
package graph

import (
	"context"
	"fmt"
)

// End - терминальная вершина графа.
const End = "__end__"

// maxSteps страхует от бесконечного цикла при ошибке в роутере.
const maxSteps = 256

// Node выполняет один шаг над состоянием.
type Node[S any] func(ctx context.Context, state S) error

// Router выбирает следующую вершину по текущему состоянию.
type Router[S any] func(state S) string

// Graph - скомпонованный граф. Собирается один раз, исполняется многократно.
type Graph[S any] struct {
	entry   string
	nodes   map[string]Node[S]
	edges   map[string]string
	routers map[string]Router[S]
}

func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:   make(map[string]Node[S]),
		edges:   make(map[string]string),
		routers: make(map[string]Router[S]),
	}
}

func (g *Graph[S]) AddNode(name string, node Node[S]) *Graph[S] {
	g.nodes[name] = node
	return g
}

// AddEdge задаёт безусловный переход from -> to.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddRouter задаёт условный переход: следующая вершина вычисляется из
// состояния после исполнения from.
func (g *Graph[S]) AddRouter(from string, router Router[S]) *Graph[S] {
	g.routers[from] = router
	return g
}

func (g *Graph[S]) SetEntry(name string) *Graph[S] {
	g.entry = name
	return g
}

// Run ведёт состояние по графу от входной вершины до End. Ошибка узла
// останавливает граф и поднимается вызывающему.
func (g *Graph[S]) Run(ctx context.Context, state S) error {
	if g.entry == "" {
		return fmt.Errorf("graph has no entry point")
	}
	current := g.entry
	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return fmt.Errorf("graph exceeded %d steps at node %q", maxSteps, current)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		node, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("unknown graph node %q", current)
		}
		if err := node(ctx, state); err != nil {
			return fmt.Errorf("node %q: %w", current, err)
		}

		next := ""
		if router, ok := g.routers[current]; ok {
			next = router(state)
		} else if to, ok := g.edges[current]; ok {
			next = to
		} else {
			next = End
		}
		if next == End {
			return nil
		}
		current = next
	}
}
